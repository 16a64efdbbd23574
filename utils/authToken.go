package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/o1egl/paseto"
)

const AccessTokenExpiry = 24 * time.Hour

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenClaims is the payload of a PASETO v2 local token issued by the
// identity service.
type TokenClaims struct {
	UserID string    `json:"userId"`
	Role   string    `json:"role"`
	Expiry time.Time `json:"expiry"`
}

// TokenMaker encrypts and decrypts access tokens with a shared symmetric key.
type TokenMaker struct {
	key []byte
	v2  *paseto.V2
	now func() time.Time
}

func NewTokenMaker(symmetricKey string) (*TokenMaker, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("SYMMETRIC_KEY must be 32 bytes long, got %d", len(symmetricKey))
	}
	return &TokenMaker{key: []byte(symmetricKey), v2: paseto.NewV2(), now: time.Now}, nil
}

// Generate issues a token for the user. The identity service owns issuance in
// production; this is used by the token command and tests.
func (m *TokenMaker) Generate(userID, role string, ttl time.Duration) (string, error) {
	claims := TokenClaims{
		UserID: userID,
		Role:   role,
		Expiry: m.now().Add(ttl),
	}
	token, err := m.v2.Encrypt(m.key, claims, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// Validate decrypts the token and checks its expiry.
func (m *TokenMaker) Validate(token string) (*TokenClaims, error) {
	var claims TokenClaims
	if err := m.v2.Decrypt(token, m.key, &claims, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}
	if m.now().After(claims.Expiry) {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}
