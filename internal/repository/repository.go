// Package repository implements the stores behind the service layer: a
// PostgreSQL implementation using pgx directly (no ORM) and an in-memory
// implementation with the same atomicity guarantees.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/clock"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const eventColumns = `id, title, description, starts_at, capacity, registered_count, status, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt,
		&e.Capacity, &e.RegisteredCount, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EventRepository handles persistence for event descriptions.
type EventRepository struct {
	db    *pgxpool.Pool
	clock clock.Clock
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool, clk clock.Clock) *EventRepository {
	if clk == nil {
		clk = clock.Real()
	}
	return &EventRepository{db: db, clock: clk}
}

// Create inserts a new active event and returns it with a generated UUID.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Description:     req.Description,
		StartsAt:        req.StartsAt,
		Capacity:        req.Capacity,
		RegisteredCount: 0,
		Status:          model.EventActive,
		CreatedAt:       r.clock.Now(),
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Title, event.Description, event.StartsAt,
		event.Capacity, event.RegisteredCount, event.Status, event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// List returns events ordered by creation time descending. An empty
// status lists every event.
func (r *EventRepository) List(ctx context.Context, status model.EventStatus) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE ($1::text = '' OR status = $1::text)
		 ORDER BY created_at DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or model.ErrEventNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}
