package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/clock"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestService(t *testing.T) (*Service, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	svc, err := NewService(Config{Secret: testSecret, Issuer: "eventhub"}, clk)
	require.NoError(t, err)
	return svc, clk
}

func TestNewServiceRejectsShortSecret(t *testing.T) {
	_, err := NewService(Config{Secret: []byte("short")}, nil)
	require.Error(t, err)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc, clk := newTestService(t)
	issuedAt := clk.Now()

	cases := []struct {
		userID string
		email  string
		role   model.Role
		ttl    time.Duration
	}{
		{"u-1", "alice@example.com", model.RoleUser, time.Hour},
		{"u-2", "root@example.com", model.RoleAdmin, 24 * time.Hour},
		{"u-3", "", model.RoleUser, time.Second},
	}
	for _, tc := range cases {
		tok, err := svc.Issue(tc.userID, tc.email, tc.role, tc.ttl)
		require.NoError(t, err)

		sess, err := svc.Verify(tok)
		require.NoError(t, err, tc.userID)
		assert.Equal(t, tc.userID, sess.UserID)
		assert.Equal(t, tc.email, sess.Email)
		assert.Equal(t, tc.role, sess.Role)
		assert.True(t, sess.IssuedAt.Equal(issuedAt))
		assert.True(t, sess.ExpiresAt.Equal(issuedAt.Add(tc.ttl)))
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Issue("", "a@example.com", model.RoleUser, time.Hour)
	assert.Error(t, err)
	_, err = svc.Issue("u", "a@example.com", model.Role("root"), time.Hour)
	assert.Error(t, err)
	_, err = svc.Issue("u", "a@example.com", model.RoleUser, -time.Second)
	assert.Error(t, err)
}

func TestIssueRejectsFractionalTTL(t *testing.T) {
	svc, clk := newTestService(t)

	for _, ttl := range []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, time.Hour + time.Nanosecond} {
		tok, err := svc.Issue("u-1", "alice@example.com", model.RoleUser, ttl)
		assert.Error(t, err, ttl.String())
		assert.Empty(t, tok)
	}

	// Whole-second ttls stay valid right up to issuedAt + ttl.
	tok, err := svc.Issue("u-1", "alice@example.com", model.RoleUser, 2*time.Second)
	require.NoError(t, err)
	clk.Advance(1200 * time.Millisecond)
	_, err = svc.Verify(tok)
	require.NoError(t, err)
	clk.Advance(800 * time.Millisecond)
	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyZeroTTLIsExpired(t *testing.T) {
	svc, _ := newTestService(t)

	tok, err := svc.Issue("u-1", "alice@example.com", model.RoleUser, 0)
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	svc, clk := newTestService(t)
	start := clk.Now()

	tok, err := svc.Issue("u-1", "alice@example.com", model.RoleUser, time.Hour)
	require.NoError(t, err)

	clk.Set(start.Add(time.Hour - time.Second))
	_, err = svc.Verify(tok)
	require.NoError(t, err)

	clk.Set(start.Add(time.Hour))
	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsAlteredLastCharacter(t *testing.T) {
	svc, _ := newTestService(t)

	tok, err := svc.Issue("u-1", "alice@example.com", model.RoleUser, time.Hour)
	require.NoError(t, err)

	last := tok[len(tok)-1]
	repl := byte('A')
	if last == 'A' {
		repl = 'B'
	}
	_, err = svc.Verify(tok[:len(tok)-1] + string(repl))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsEveryPayloadAlteration(t *testing.T) {
	svc, _ := newTestService(t)

	tok, err := svc.Issue("u-1", "alice@example.com", model.RoleUser, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	payload := []byte(parts[1])
	for i := range payload {
		for _, bit := range []byte{0x01, 0x02, 0x04} {
			altered := make([]byte, len(payload))
			copy(altered, payload)
			altered[i] ^= bit
			forged := parts[0] + "." + string(altered) + "." + parts[2]

			_, err := svc.Verify(forged)
			require.ErrorIs(t, err, ErrInvalidSignature, "position %d bit %#x", i, bit)
		}
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	svc, clk := newTestService(t)

	claims := Claims{
		Role: model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			Issuer:    "eventhub",
			IssuedAt:  jwt.NewNumericDate(clk.Now()),
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	_, err = svc.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsUnsignedPayload(t *testing.T) {
	svc, clk := newTestService(t)

	claims := Claims{
		Role: model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(unsigned)
	assert.Error(t, err)
	_, err = svc.Verify(unsigned + "c2ln")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyMalformed(t *testing.T) {
	svc, _ := newTestService(t)

	for _, in := range []string{"", "abc", "a.b", "a..c", ".b.c", "a.b.c.d"} {
		_, err := svc.Verify(in)
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	svc, clk := newTestService(t)
	other, err := NewService(Config{Secret: testSecret, Issuer: "elsewhere"}, clk)
	require.NoError(t, err)

	tok, err := other.Issue("u-1", "alice@example.com", model.RoleUser, time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrMalformed)
}
