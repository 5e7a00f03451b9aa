// Package token issues and verifies stateless bearer tokens. A token is an
// HS256-signed JWT carrying the subject id, email, role and validity window.
// There is no server-side registry; the signature is the only thing that
// separates an issued session from a hand-crafted one.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/clock"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
)

// MinSecretLength is the smallest accepted HMAC key, in bytes.
const MinSecretLength = 32

var (
	// ErrMalformed is returned when the token cannot be decoded into a session.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature is returned when the integrity tag does not match.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned when the token is past its expiry.
	ErrExpired = errors.New("token expired")
)

// Config holds the signing parameters.
type Config struct {
	Secret []byte
	Issuer string
}

// Claims is the signed payload. The subject is the user id.
type Claims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens. It is safe for concurrent use.
type Service struct {
	secret []byte
	issuer string
	clock  clock.Clock
	method *jwt.SigningMethodHMAC
	parser *jwt.Parser
}

// NewService validates cfg and returns a Service reading time from clk.
func NewService(cfg Config, clk clock.Clock) (*Service, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if clk == nil {
		clk = clock.Real()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(clk.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Service{
		secret: secret,
		issuer: cfg.Issuer,
		clock:  clk,
		method: jwt.SigningMethodHS256,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Issue signs a session for the given subject valid for ttl. A zero ttl
// produces a token that is already expired. ttl must be whole seconds.
func (s *Service) Issue(userID, email string, role model.Role, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("token subject is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if ttl < 0 {
		return "", errors.New("token ttl must not be negative")
	}
	// exp is carried in whole seconds; a fractional ttl would expire early.
	if ttl%time.Second != 0 {
		return "", fmt.Errorf("token ttl %s must be a whole number of seconds", ttl)
	}

	now := s.clock.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the integrity tag first and only then decodes and validates
// the payload, so any alteration of the signed bytes is reported as
// ErrInvalidSignature. Expiry requires now < expiresAt.
func (s *Service) Verify(tokenStr string) (*model.Session, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformed
	}

	sig, err := s.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if err := s.method.Verify(parts[0]+"."+parts[1], sig, s.secret); err != nil {
		return nil, ErrInvalidSignature
	}

	claims := &Claims{}
	_, err = s.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if claims.Subject == "" || !claims.Role.Valid() || claims.IssuedAt == nil {
		return nil, ErrMalformed
	}

	return &model.Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
