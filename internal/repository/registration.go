package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/service"
)

// RegistrationRepository is the PostgreSQL registration store.
//
// ─────────────────────────────────────────────────────────────────────────────
// WHY THE EVENT ROW IS LOCKED
// ─────────────────────────────────────────────────────────────────────────────
//
// Reading registered_count and writing it back in separate statements lets
// two requests both see the last free seat:
//
//	A: SELECT registered_count → 9 (capacity 10)
//	B: SELECT registered_count → 9
//	A: INSERT registration, UPDATE registered_count = 10
//	B: INSERT registration, UPDATE registered_count = 10   ← 11 confirmed rows
//
// Every unit therefore starts with SELECT … FOR UPDATE on the event row.
// The second transaction blocks on that lock until the first commits or
// rolls back, then reads the committed counter. Units on different events
// never touch the same row and do not contend.
//
// The partial unique index on (event_id, user_id) WHERE status = 'confirmed'
// is a backstop; a violation surfaces as model.ErrAlreadyRegistered.
// ─────────────────────────────────────────────────────────────────────────────
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

var _ service.RegistrationStore = (*RegistrationRepository)(nil)

// WithinEventTx runs fn in one transaction, committing only if fn succeeds.
func (r *RegistrationRepository) WithinEventTx(ctx context.Context, fn func(tx service.RegistrationTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is always resolved.
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&pgRegistrationTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsRegistered reports whether a confirmed row exists for the pair.
func (r *RegistrationRepository) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM registrations
		   WHERE event_id = $1 AND user_id = $2 AND status = $3)`,
		eventID, userID, model.RegistrationConfirmed,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

// EventExists reports whether the event row is present.
func (r *RegistrationRepository) EventExists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check event: %w", err)
	}
	return exists, nil
}

// ListByEvent returns all registrations for a given event.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, user_id, status, created_at, updated_at
		 FROM registrations
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var reg model.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

type pgRegistrationTx struct {
	tx pgx.Tx
}

func (t *pgRegistrationTx) LockEvent(ctx context.Context, eventID string) (*model.Event, error) {
	e, err := scanEvent(t.tx.QueryRow(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, nil
}

func (t *pgRegistrationTx) FindConfirmed(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	var reg model.Registration
	err := t.tx.QueryRow(ctx,
		`SELECT id, event_id, user_id, status, created_at, updated_at
		 FROM registrations
		 WHERE event_id = $1 AND user_id = $2 AND status = $3`,
		eventID, userID, model.RegistrationConfirmed,
	).Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return &reg, nil
}

func (t *pgRegistrationTx) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO registrations (id, event_id, user_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		reg.ID, reg.EventID, reg.UserID, reg.Status, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyRegistered
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (t *pgRegistrationTx) UpdateRegistrationStatus(ctx context.Context, reg *model.Registration) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1`,
		reg.ID, reg.Status, reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update registration %s: no row", reg.ID)
	}
	return nil
}

// UpdateEventCounters refuses a counter outside [0, capacity]; the CHECK
// constraint on events enforces the same bound.
func (t *pgRegistrationTx) UpdateEventCounters(ctx context.Context, eventID string, registeredCount int, status model.EventStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events
		 SET registered_count = $2, status = $3
		 WHERE id = $1 AND $2 BETWEEN 0 AND capacity`,
		eventID, registeredCount, status,
	)
	if err != nil {
		return fmt.Errorf("update event counters: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update event counters: count %d out of range for event %s", registeredCount, eventID)
	}
	return nil
}
