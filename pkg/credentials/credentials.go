// Package credentials supplies the archive access token to the upload
// pipeline and persists the signed-in account.
package credentials

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EnvToken is the environment variable that overrides the stored token.
const EnvToken = "GLACEON_TOKEN"

// Provider returns the current access token, or false when none is usable.
type Provider interface {
	Token(ctx context.Context) (string, bool)
}

// Account describes the signed-in user.
type Account struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Usable reports whether token can be sent. Tokens that parse as a JWT with
// an exp claim in the past are rejected. Opaque tokens are accepted as-is
// because only the server can judge them.
func Usable(token string, now time.Time) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return now.Before(claims.ExpiresAt.Time)
}

// Static always returns the same token.
type Static string

func (s Static) Token(context.Context) (string, bool) {
	return string(s), Usable(string(s), time.Now())
}

// Chain asks each provider in order and returns the first usable token.
type Chain []Provider

func (c Chain) Token(ctx context.Context) (string, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if token, ok := p.Token(ctx); ok {
			return token, true
		}
	}
	return "", false
}

// Env reads the token from GLACEON_TOKEN on every call.
type Env struct{}

func (Env) Token(context.Context) (string, bool) {
	token := os.Getenv(EnvToken)
	return token, Usable(token, time.Now())
}
