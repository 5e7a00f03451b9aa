package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/clock"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
)

// RegistrationTx is the view of the store available inside one atomic unit.
// LockEvent must hold the event exclusively until the unit ends so that
// the capacity check and the counter write cannot interleave with another
// unit on the same event.
type RegistrationTx interface {
	LockEvent(ctx context.Context, eventID string) (*model.Event, error)
	FindConfirmed(ctx context.Context, eventID, userID string) (*model.Registration, error)
	InsertRegistration(ctx context.Context, reg *model.Registration) error
	UpdateRegistrationStatus(ctx context.Context, reg *model.Registration) error
	UpdateEventCounters(ctx context.Context, eventID string, registeredCount int, status model.EventStatus) error
}

// RegistrationStore runs atomic units and answers lock-free reads.
// WithinEventTx commits when fn returns nil and rolls back otherwise;
// a failed unit leaves no visible mutation.
type RegistrationStore interface {
	WithinEventTx(ctx context.Context, fn func(tx RegistrationTx) error) error
	IsRegistered(ctx context.Context, eventID, userID string) (bool, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	EventExists(ctx context.Context, eventID string) (bool, error)
}

// RegistrationManager is the only writer of registrations and of the
// registered_count/status pair on events.
type RegistrationManager struct {
	store RegistrationStore
	clock clock.Clock
}

// NewRegistrationManager constructs a RegistrationManager.
func NewRegistrationManager(store RegistrationStore, clk clock.Clock) *RegistrationManager {
	if clk == nil {
		clk = clock.Real()
	}
	return &RegistrationManager{store: store, clock: clk}
}

// Register moves (eventID, userID) into the confirmed state.
//
// Checks run in this order inside the unit: event exists, event is not
// cancelled/completed, no confirmed row for the pair, seats remain. A
// repeated Register therefore reports ErrAlreadyRegistered even when the
// caller's own registration filled the event.
func (m *RegistrationManager) Register(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	if err := validatePair(eventID, userID); err != nil {
		return nil, err
	}

	var reg *model.Registration
	err := m.store.WithinEventTx(ctx, func(tx RegistrationTx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Status == model.EventCancelled || event.Status == model.EventCompleted {
			return model.ErrEventNotActive
		}

		existing, err := tx.FindConfirmed(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return model.ErrAlreadyRegistered
		}

		if event.IsFull() {
			return model.ErrEventFull
		}

		now := m.clock.Now()
		reg = &model.Registration{
			ID:        uuid.New().String(),
			EventID:   eventID,
			UserID:    userID,
			Status:    model.RegistrationConfirmed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertRegistration(ctx, reg); err != nil {
			return err
		}

		count := event.RegisteredCount + 1
		status := model.EventActive
		if count >= event.Capacity {
			status = model.EventFull
		}
		return tx.UpdateEventCounters(ctx, eventID, count, status)
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("register for event: %w", err)
	}
	return reg, nil
}

// Cancel moves the pair's confirmed registration to cancelled and frees
// its seat. A full event drops back to active.
func (m *RegistrationManager) Cancel(ctx context.Context, eventID, userID string) error {
	if err := validatePair(eventID, userID); err != nil {
		return err
	}

	err := m.store.WithinEventTx(ctx, func(tx RegistrationTx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}

		reg, err := tx.FindConfirmed(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if reg == nil {
			return model.ErrNotRegistered
		}

		reg.Status = model.RegistrationCancelled
		reg.UpdatedAt = m.clock.Now()
		if err := tx.UpdateRegistrationStatus(ctx, reg); err != nil {
			return err
		}

		count := event.RegisteredCount - 1
		if count < 0 {
			count = 0
		}
		status := event.Status
		if status == model.EventFull && count < event.Capacity {
			status = model.EventActive
		}
		return tx.UpdateEventCounters(ctx, eventID, count, status)
	})
	if err != nil {
		if isBusinessError(err) {
			return err
		}
		return fmt.Errorf("cancel registration: %w", err)
	}
	return nil
}

// IsRegistered reports whether the pair holds a confirmed registration.
// It takes no lock and must not be used for capacity decisions.
func (m *RegistrationManager) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	if err := validatePair(eventID, userID); err != nil {
		return false, err
	}
	ok, err := m.store.IsRegistered(ctx, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("lookup registration: %w", err)
	}
	return ok, nil
}

// ListRegistrations returns every registration row for an event,
// cancelled history included.
func (m *RegistrationManager) ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	exists, err := m.store.EventExists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("lookup event: %w", err)
	}
	if !exists {
		return nil, model.ErrEventNotFound
	}
	regs, err := m.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

func validatePair(eventID, userID string) error {
	if strings.TrimSpace(eventID) == "" {
		return fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	return nil
}

func isBusinessError(err error) bool {
	return errors.Is(err, model.ErrEventNotFound) ||
		errors.Is(err, model.ErrEventNotActive) ||
		errors.Is(err, model.ErrEventFull) ||
		errors.Is(err, model.ErrAlreadyRegistered) ||
		errors.Is(err, model.ErrNotRegistered)
}
