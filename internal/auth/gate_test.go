package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/clock"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/token"
)

func newTestGate(t *testing.T) (*Gate, *token.Service, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	svc, err := token.NewService(token.Config{Secret: []byte("gate-test-secret-gate-test-secret")}, clk)
	require.NoError(t, err)
	return NewGate(svc), svc, clk
}

func TestAuthenticate(t *testing.T) {
	gate, tokens, clk := newTestGate(t)

	_, err := gate.Authenticate("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = gate.Authenticate("garbage")
	assert.ErrorIs(t, err, token.ErrMalformed)

	tok, err := tokens.Issue("u-1", "a@example.com", model.RoleUser, time.Minute)
	require.NoError(t, err)

	sess, err := gate.Authenticate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", sess.UserID)

	clk.Advance(time.Minute)
	_, err = gate.Authenticate(tok)
	assert.ErrorIs(t, err, token.ErrExpired)
}

func TestAuthorize(t *testing.T) {
	gate, _, _ := newTestGate(t)

	user := &model.Session{UserID: "u", Role: model.RoleUser}
	admin := &model.Session{UserID: "a", Role: model.RoleAdmin}

	_, err := gate.Authorize(nil, model.RoleUser)
	assert.ErrorIs(t, err, ErrMissingToken)

	got, err := gate.Authorize(user, model.RoleUser)
	require.NoError(t, err)
	assert.Same(t, user, got)

	_, err = gate.Authorize(user, model.RoleAdmin)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = gate.Authorize(admin, model.RoleAdmin)
	assert.NoError(t, err)
	_, err = gate.Authorize(admin, model.RoleUser)
	assert.NoError(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc.def.ghi", BearerToken("Bearer abc.def.ghi"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "", BearerToken("Basic dXNlcjpwYXNz"))
	assert.Equal(t, "", BearerToken(""))
}

func TestSessionContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	sess := &model.Session{UserID: "u"}
	got, ok := SessionFromContext(WithSession(context.Background(), sess))
	require.True(t, ok)
	assert.Same(t, sess, got)
}
