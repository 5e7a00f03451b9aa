package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
)

// AccountRepository handles persistence for login credentials.
type AccountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository constructs an AccountRepository.
func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount inserts acct. A duplicate email yields model.ErrEmailTaken.
func (r *AccountRepository) CreateAccount(ctx context.Context, acct *model.Account) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (id, email, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		acct.ID, acct.Email, acct.PasswordHash, acct.Role, acct.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccountByEmail returns the account or model.ErrAccountNotFound.
func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account
	err := r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, role, created_at
		 FROM accounts WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}
