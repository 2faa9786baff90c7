package auth

import (
	"hire-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var secret = []byte("a_test_secret_long_enough_for_hs256")

func TestGenerateToken_And_Validate(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(secret, "employer-1", []string{RoleEmployer}, time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(secret, token)
	req.NoError(err)
	req.Equal("employer-1", claims.UserID)
	req.Equal([]string{RoleEmployer}, claims.Roles)
}

func TestValidateToken_Rejects(t *testing.T) {
	valid, err := GenerateToken(secret, "employer-1", nil, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(secret, "employer-1", nil, -time.Minute)
	require.NoError(t, err)
	otherSecret, err := GenerateToken([]byte("another_secret_another_secret_123"), "employer-1", nil, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid-token-string"},
		{"expired", expired},
		{"signed with another secret", otherSecret},
		{"truncated", valid[:len(valid)-4]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := ValidateToken(secret, tt.token)
			req.ErrorIs(err, errors.ErrInvalidToken)
		})
	}
}

func TestGenerateToken_Empty_User(t *testing.T) {
	req := require.New(t)
	_, err := GenerateToken(secret, "", nil, time.Hour)
	req.ErrorIs(err, errors.ErrInvalidRequest)
}
