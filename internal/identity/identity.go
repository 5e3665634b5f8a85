// Package identity resolves the stable user id the sync core keys every
// remote query by. The identity provider itself is opaque to the core; it
// only needs a user id or ErrUnauthenticated.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTokenExpired    = errors.New("session token expired")
)

type Provider interface {
	// UserID returns the id of the signed-in user.
	UserID(ctx context.Context) (string, error)
}

// Claims carries the standard claims plus the user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// GenerateToken issues an HS256 session token for userID.
func GenerateToken(userID string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID: userID,
	})
	return token.SignedString(secretKey)
}

// ParseToken validates tokenString and returns its user id.
func ParseToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %w", ErrUnauthenticated, ErrTokenExpired)
		}
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return "", ErrUnauthenticated
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return "", ErrUnauthenticated
	}
	return id, nil
}

// TokenProvider reads the user id from a session token held in memory.
type TokenProvider struct {
	mu     sync.RWMutex
	secret []byte
	token  string
}

func NewTokenProvider(secret []byte, token string) *TokenProvider {
	return &TokenProvider{secret: secret, token: token}
}

// SetToken replaces the session token, e.g. after a fresh sign-in. An empty
// token signs the user out.
func (p *TokenProvider) SetToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}

func (p *TokenProvider) UserID(_ context.Context) (string, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	if token == "" {
		return "", ErrUnauthenticated
	}
	return ParseToken(token, p.secret)
}

// Static always reports the same user; an empty id means signed out.
type Static string

func (s Static) UserID(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrUnauthenticated
	}
	return string(s), nil
}
