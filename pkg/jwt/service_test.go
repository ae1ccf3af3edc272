package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret", "test-refresh-secret", time.Minute, time.Hour)

	token, err := svc.GenerateAccessToken(42, "alice@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestRefreshTokenNotValidAsAccess(t *testing.T) {
	svc := NewService("test-secret", "test-refresh-secret", time.Minute, time.Hour)

	refresh, err := svc.GenerateRefreshToken(42)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(refresh)
	assert.Error(t, err)

	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
}

func TestAccessTokenNotValidAsRefresh(t *testing.T) {
	svc := NewService("test-secret", "", time.Minute, time.Hour)

	access, err := svc.GenerateAccessToken(42, "alice@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestExpiredToken(t *testing.T) {
	svc := NewService("test-secret", "", -time.Minute, time.Hour)

	token, err := svc.GenerateAccessToken(42, "alice@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTamperedToken(t *testing.T) {
	svc := NewService("test-secret", "", time.Minute, time.Hour)
	other := NewService("other-secret", "", time.Minute, time.Hour)

	token, err := svc.GenerateAccessToken(42, "alice@example.com")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
