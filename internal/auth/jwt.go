package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified caller handed to the messaging layer: always a
// scalar village id, never a nested object.
type Identity struct {
	UserID    string
	Username  string
	VillageID string
	Active    bool
}

// Claims is the JWT claim set issued by the auth subsystem.
type Claims struct {
	Username  string `json:"username"`
	VillageID string `json:"village_id"`
	Active    bool   `json:"active"`
	jwt.RegisteredClaims
}

// TokenManager verifies (and, for tests and tooling, issues) session tokens.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a TokenManager from the shared signing secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Issue signs a token for the given identity.
func (m *TokenManager) Issue(ident Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:  ident.Username,
		VillageID: ident.VillageID,
		Active:    ident.Active,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token, returning the embedded identity.
func (m *TokenManager) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v: %w", t.Header["alg"], ErrInvalidToken)
		}
		return m.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.VillageID == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID:    claims.Subject,
		Username:  claims.Username,
		VillageID: claims.VillageID,
		Active:    claims.Active,
	}, nil
}
