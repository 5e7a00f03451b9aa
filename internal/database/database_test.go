package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDoesNotWaitAfterLastAttempt(t *testing.T) {
	boom := errors.New("connection refused")
	calls, waits := 0, 0

	err := retry(context.Background(), 3, func(context.Context) error {
		waits++
		return nil
	}, nil, func() error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, waits)
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls, waits := 0, 0

	err := retry(context.Background(), 5, func(context.Context) error {
		waits++
		return nil
	}, nil, func() error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, waits)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry(ctx, 5, sleep(connectBackoff), nil, func() error {
		calls++
		return errors.New("down")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5433", User: "u", Password: "p", DBName: "events", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=events sslmode=disable", cfg.DSN())
}
