// Package auth checks the bearer token handed over by the authentication
// collaborator before it is forwarded to the media backend. Tokens are
// never verified here; the backend owns signature checks.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMissing = errors.New("authentication token is missing")
	ErrTokenExpired = errors.New("authentication token has expired")
)

// Check returns the trimmed token when it is present and, for JWTs, not
// past its exp claim at now. Opaque tokens pass unchanged.
func Check(token string, now time.Time) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenMissing
	}

	claims, ok := parseClaims(token)
	if !ok {
		return token, nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return "", fmt.Errorf("read token expiry: %w", err)
	}
	if exp != nil && !now.Before(exp.Time) {
		return "", ErrTokenExpired
	}
	return token, nil
}

// Subject returns the sub claim of a JWT, or "" for opaque tokens.
func Subject(token string) string {
	claims, ok := parseClaims(strings.TrimSpace(token))
	if !ok {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// FromHeader extracts the token from an Authorization header value.
func FromHeader(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return ""
}

func parseClaims(token string) (jwt.MapClaims, bool) {
	if strings.Count(token, ".") != 2 {
		return nil, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	return claims, ok
}
