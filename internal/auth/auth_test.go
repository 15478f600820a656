package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	token, err := Sign("secret", "user-1", "sub-1", time.Minute, time.Now())
	require.NoError(t, err)

	claims, err := Parse("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "sub-1", claims.SubscriptionID)
}

func TestParse_Rejects(t *testing.T) {
	good, err := Sign("secret", "user-1", "", time.Minute, time.Now())
	require.NoError(t, err)
	expired, err := Sign("secret", "user-1", "", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	anonymous, err := Sign("secret", "", "", time.Minute, time.Now())
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret": good,
		"expired":      expired,
		"no subject":   anonymous,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			secret := "secret"
			if name == "wrong secret" {
				secret = "other"
			}
			_, err := Parse(secret, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTSource(t *testing.T) {
	fixed := time.Now()
	src := &JWTSource{Secret: "s", UserID: "u", Now: func() time.Time { return fixed }}

	token, err := src.Token(context.Background())
	require.NoError(t, err)

	claims, err := Parse("s", token)
	require.NoError(t, err)
	assert.Equal(t, "u", claims.Subject)
	assert.WithinDuration(t, fixed.Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
}
