package internal

import (
	"fmt"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host       string `env:"HOST,default=0.0.0.0"`
	Port       int    `env:"PORT,default=8080"`
	WSPort     int    `env:"WS_PORT,default=8090"`
	DebugPort  int    `env:"DEBUG_PORT,default=8081"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`
	BadgerPath string `env:"BADGER_FILEPATH,required=true"`

	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	PresenceInterval     time.Duration `env:"PRESENCE_INTERVAL,default=5s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=10"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	CipherPassphrase  string        `env:"CIPHER_PASSPHRASE,required=true"`
	CipherSalt        string        `env:"CIPHER_SALT,required=true"`

	MaxContentLength  int     `env:"MAX_CONTENT_LENGTH,default=4000"`
	SendRatePerSecond float64 `env:"SEND_RATE_PER_SECOND,default=5"`
	SendBurst         int     `env:"SEND_BURST,default=10"`

	EnableModeration   bool   `env:"ENABLE_MODERATION,default=false"`
	CharReplacement    string `env:"CHARACTER_REPLACEMENT,default=*"`
	CompactionSchedule string `env:"COMPACTION_SCHEDULE,default=0 */10 * * * *"`
}

// LoadConfig reads the optional .env files, the process environment winning
// over them, then decodes and checks the configuration.
func LoadConfig(files ...string) (Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes long")
	}
	if c.ConnectionBufferSize <= 0 || c.BufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE and BUFFER_SIZE must be positive")
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("DELIVERY_TIMEOUT must be positive, got %s", c.DeliveryTimeout)
	}
	if c.SendRatePerSecond < 0 {
		return fmt.Errorf("SEND_RATE_PER_SECOND must not be negative")
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
