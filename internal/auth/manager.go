// Package auth provides the authorization capabilities paired with each
// platform strategy.
package auth

import (
	"context"
	"errors"
	"strings"
)

// Manager decides whether a caller may use the API.
type Manager interface {
	// Scheme is the HTTP authentication scheme advertised in WWW-Authenticate.
	Scheme() string
	// Validate checks the raw Authorization header value. A false result with a
	// nil error means the credentials were understood and rejected.
	Validate(ctx context.Context, authorization string) (bool, error)
}

var ErrUnsupportedScheme = errors.New("unsupported authorization scheme")

// splitAuthorization separates "Scheme value" and matches the scheme case-insensitively.
func splitAuthorization(authorization, scheme string) (string, bool) {
	prefix, value, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(prefix, scheme) {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
