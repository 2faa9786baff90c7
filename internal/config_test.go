package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CIPHER_PASSPHRASE", "passphrase")
	t.Setenv("CIPHER_SALT", "0123456789abcdef")
}

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	setRequired(t)

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal(8080, config.Port)
	req.Equal(2*time.Second, config.DeliveryTimeout)
	req.Equal("*", config.CharReplacement)
	req.Nil(config.LimitMessages)
	req.False(config.EnableModeration)
}

func TestLoadConfig_Env_File(t *testing.T) {
	req := require.New(t)
	setRequired(t)
	t.Setenv("PORT", "9000")
	file := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(file, []byte("PORT=7000\nLIMIT_MESSAGES=20\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("LIMIT_MESSAGES") })

	config, err := LoadConfig(file, filepath.Join(t.TempDir(), "missing.env"))

	req.NoError(err)
	// The environment wins over the file
	req.Equal(9000, config.Port)
	req.NotNil(config.LimitMessages)
	req.Equal(20, *config.LimitMessages)
}

func TestLoadConfig_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"short secret", "JWT_SECRET", "too-short"},
		{"bad replacement", "CHARACTER_REPLACEMENT", "**"},
		{"negative rate", "SEND_RATE_PER_SECOND", "-1"},
		{"no buffer", "CONNECTION_BUFFER_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()

			req.Error(err)
		})
	}
}

func TestLoadConfig_Missing_Required(t *testing.T) {
	req := require.New(t)
	setRequired(t)
	t.Setenv("JWT_SECRET", "")
	req.NoError(os.Unsetenv("JWT_SECRET"))

	_, err := LoadConfig()

	req.Error(err)
}
