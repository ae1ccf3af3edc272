package jwt

import (
	"time"
)

// Service issues and validates access/refresh token pairs
type Service struct {
	secret        string
	refreshSecret string
	expiry        time.Duration
	refreshExpiry time.Duration
}

// NewService creates a new JWT service. Zero durations fall back to
// 15 minutes for access tokens and 7 days for refresh tokens.
func NewService(secret, refreshSecret string, expiry, refreshExpiry time.Duration) *Service {
	if expiry == 0 {
		expiry = 15 * time.Minute
	}
	if refreshExpiry == 0 {
		refreshExpiry = 7 * 24 * time.Hour
	}
	if refreshSecret == "" {
		refreshSecret = secret
	}

	return &Service{
		secret:        secret,
		refreshSecret: refreshSecret,
		expiry:        expiry,
		refreshExpiry: refreshExpiry,
	}
}

// GenerateAccessToken generates a short-lived access token for a user
func (s *Service) GenerateAccessToken(userID uint, email string) (string, error) {
	return generateToken(s.secret, newClaims(userID, email, TokenTypeAccess, s.expiry))
}

// GenerateRefreshToken generates a long-lived refresh token for a user
func (s *Service) GenerateRefreshToken(userID uint) (string, error) {
	return generateToken(s.refreshSecret, newClaims(userID, "", TokenTypeRefresh, s.refreshExpiry))
}

// ValidateAccessToken validates an access token and returns the claims
func (s *Service) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	return validateToken(s.secret, tokenString, TokenTypeAccess)
}

// ValidateRefreshToken validates a refresh token and returns the claims
func (s *Service) ValidateRefreshToken(tokenString string) (*JWTClaims, error) {
	return validateToken(s.refreshSecret, tokenString, TokenTypeRefresh)
}
