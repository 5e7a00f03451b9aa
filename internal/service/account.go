package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/clock"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// AccountStore persists credentials.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(userID, email string, role model.Role, ttl time.Duration) (string, error)
	Verify(token string) (*model.Session, error)
}

// LoginLimiter throttles repeated failed logins per key.
type LoginLimiter interface {
	Check(ctx context.Context, key string) error
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// AccountOptions tunes AccountService.
type AccountOptions struct {
	TokenTTL   time.Duration
	BcryptCost int
	Limiter    LoginLimiter
}

// AccountService handles signup and login. Every account, admin included,
// is authenticated through the same stored-hash path.
type AccountService struct {
	accounts  AccountStore
	tokens    TokenIssuer
	clock     clock.Clock
	ttl       time.Duration
	cost      int
	limiter   LoginLimiter
	dummyHash []byte
}

// NewAccountService constructs an AccountService.
func NewAccountService(accounts AccountStore, tokens TokenIssuer, clk clock.Clock, opts AccountOptions) (*AccountService, error) {
	if opts.TokenTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if opts.TokenTTL%time.Second != 0 {
		return nil, errors.New("token ttl must be a whole number of seconds")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if clk == nil {
		clk = clock.Real()
	}
	// Compared against on unknown emails so both failure paths cost a hash.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	return &AccountService{
		accounts:  accounts,
		tokens:    tokens,
		clock:     clk,
		ttl:       opts.TokenTTL,
		cost:      opts.BcryptCost,
		limiter:   opts.Limiter,
		dummyHash: dummy,
	}, nil
}

// SignUp creates a user-role account.
func (s *AccountService) SignUp(ctx context.Context, req model.CredentialsRequest) (*model.Account, error) {
	email := normalizeEmail(req.Email)
	if !isValidEmail(email) {
		return nil, fmt.Errorf("%w: email is not a valid email address", model.ErrValidation)
	}
	if len(req.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", model.ErrValidation, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acct := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.accounts.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			return nil, model.ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

// Login checks credentials and issues a signed session token. Unknown
// email and wrong password both yield ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, req model.CredentialsRequest, clientIP string) (*model.LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", model.ErrValidation)
	}

	keys := limiterKeys(email, clientIP)
	if s.limiter != nil {
		for _, k := range keys {
			if err := s.limiter.Check(ctx, k); err != nil {
				return nil, err
			}
		}
	}

	acct, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, model.ErrAccountNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	hash := s.dummyHash
	if acct != nil {
		hash = []byte(acct.PasswordHash)
	}
	if cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(req.Password)); cmpErr != nil || acct == nil {
		if s.limiter != nil {
			for _, k := range keys {
				if err := s.limiter.Fail(ctx, k); err != nil {
					return nil, err
				}
			}
		}
		return nil, model.ErrInvalidCredentials
	}

	if s.limiter != nil {
		for _, k := range keys {
			if err := s.limiter.Reset(ctx, k); err != nil {
				return nil, err
			}
		}
	}

	tok, err := s.tokens.Issue(acct.ID, acct.Email, acct.Role, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	sess, err := s.tokens.Verify(tok)
	if err != nil {
		return nil, fmt.Errorf("verify issued token: %w", err)
	}
	return &model.LoginResponse{Token: tok, Session: sess}, nil
}

func limiterKeys(email, clientIP string) []string {
	keys := []string{"email:" + email}
	if clientIP != "" {
		keys = append(keys, "ip:"+clientIP)
	}
	return keys
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
