// Package auth holds the shared-secret checks used by the hello handshake
// and the admin plane. Policy and credential storage live with the caller.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator checks an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared secret. An empty secret accepts
// nothing; callers that want an open endpoint skip validation entirely.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	expect := []byte(s.Token)
	if len(expect) == 0 {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(expect, []byte(token)) == 1 {
		return nil
	}
	return ErrUnauthorized
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

const bearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header value.
// It returns "" when the header is missing or not a bearer scheme.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}
