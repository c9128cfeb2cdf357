package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "socialsync", time.Hour)

	token, err := m.GenerateAccessToken("user-1", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "socialsync", claims.Issuer)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("secret", "socialsync", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewJWTManager("other", "socialsync", time.Hour).GenerateAccessToken("user-1", "")
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := NewJWTManager("secret", "someone-else", time.Hour).GenerateAccessToken("user-1", "")
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := NewJWTManager("secret", "socialsync", -time.Minute).GenerateAccessToken("user-1", "")
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("no user", func(t *testing.T) {
		token, err := m.GenerateAccessToken("", "")
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{UserID: "user-1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not.a.jwt")
		assert.Error(t, err)
	})
}
