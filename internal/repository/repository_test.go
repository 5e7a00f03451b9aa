package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/clock"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/database"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/service"
)

// newTestPool connects to TEST_DATABASE_URL, applies the reference schema
// and empties the tables. Tests are skipped when the variable is unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../database/schema.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE registrations, events, accounts`)
	require.NoError(t, err)
	return pool
}

func TestPostgresConcurrentRegistration(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	events := NewEventRepository(pool, clock.Real())
	event, err := events.Create(ctx, model.CreateEventRequest{Title: "Load test", Capacity: 10})
	require.NoError(t, err)

	m := service.NewRegistrationManager(NewRegistrationRepository(pool), nil)

	const callers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, full int
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := m.Register(ctx, event.ID, user)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, model.ErrEventFull):
				full++
			default:
				t.Errorf("unexpected error for %s: %v", user, err)
			}
		}(fmt.Sprintf("user-%02d", i))
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 40, full)

	got, err := events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.RegisteredCount)
	assert.Equal(t, model.EventFull, got.Status)
}

func TestPostgresCancelAndReregister(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	events := NewEventRepository(pool, clock.Real())
	regs := NewRegistrationRepository(pool)
	event, err := events.Create(ctx, model.CreateEventRequest{Title: "Workshop", Capacity: 1})
	require.NoError(t, err)

	m := service.NewRegistrationManager(regs, nil)

	_, err = m.Register(ctx, event.ID, "alice")
	require.NoError(t, err)
	_, err = m.Register(ctx, event.ID, "alice")
	require.ErrorIs(t, err, model.ErrAlreadyRegistered)
	_, err = m.Register(ctx, event.ID, "bob")
	require.ErrorIs(t, err, model.ErrEventFull)

	require.NoError(t, m.Cancel(ctx, event.ID, "alice"))
	got, err := events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RegisteredCount)
	assert.Equal(t, model.EventActive, got.Status)

	_, err = m.Register(ctx, event.ID, "alice")
	require.NoError(t, err)

	rows, err := regs.ListByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	ok, err := regs.IsRegistered(ctx, event.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostgresUniqueIndexBackstop(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	events := NewEventRepository(pool, clock.Real())
	regs := NewRegistrationRepository(pool)
	event, err := events.Create(ctx, model.CreateEventRequest{Title: "Backstop", Capacity: 5})
	require.NoError(t, err)

	now := time.Now().UTC()
	insert := func(id string) error {
		return regs.WithinEventTx(ctx, func(tx service.RegistrationTx) error {
			return tx.InsertRegistration(ctx, &model.Registration{
				ID: id, EventID: event.ID, UserID: "alice",
				Status: model.RegistrationConfirmed, CreatedAt: now, UpdatedAt: now,
			})
		})
	}
	require.NoError(t, insert("r1"))
	assert.ErrorIs(t, insert("r2"), model.ErrAlreadyRegistered)
}

func TestPostgresAccounts(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	accounts := NewAccountRepository(pool)

	acct := &model.Account{ID: "a1", Email: "a@example.com", PasswordHash: "x", Role: model.RoleUser, CreatedAt: time.Now().UTC()}
	require.NoError(t, accounts.CreateAccount(ctx, acct))
	assert.ErrorIs(t, accounts.CreateAccount(ctx, &model.Account{ID: "a2", Email: "a@example.com", PasswordHash: "y", Role: model.RoleUser, CreatedAt: time.Now().UTC()}), model.ErrEmailTaken)

	got, err := accounts.GetAccountByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)

	_, err = accounts.GetAccountByEmail(ctx, "b@example.com")
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}
