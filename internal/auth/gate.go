// Package auth is the access gate in front of the registration core. It turns
// a bearer token into a verified session and enforces role requirements. It
// performs no storage access.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
)

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrForbidden is returned when the session's role is insufficient.
	ErrForbidden = errors.New("forbidden")
)

// Verifier decodes and validates a bearer token.
type Verifier interface {
	Verify(token string) (*model.Session, error)
}

// Gate authenticates tokens and authorizes sessions.
type Gate struct {
	verifier Verifier
}

// NewGate constructs a Gate backed by v.
func NewGate(v Verifier) *Gate {
	return &Gate{verifier: v}
}

// Authenticate verifies token and returns the session it carries.
func (g *Gate) Authenticate(token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	return g.verifier.Verify(token)
}

// Authorize checks that sess satisfies required.
func (g *Gate) Authorize(sess *model.Session, required model.Role) (*model.Session, error) {
	if sess == nil {
		return nil, ErrMissingToken
	}
	if !sess.Role.Satisfies(required) {
		return nil, ErrForbidden
	}
	return sess, nil
}

type sessionContextKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*model.Session)
	return sess, ok && sess != nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. It returns "" when the header is absent or not a bearer
// credential.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
