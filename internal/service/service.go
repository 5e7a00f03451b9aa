// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
)

// MaxCapacity bounds the capacity accepted for a new event.
const MaxCapacity = 100_000

// EventStore persists event descriptions.
type EventStore interface {
	Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	List(ctx context.Context, status model.EventStatus) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// EventService is the event-authoring side. After creation it never
// touches registered_count or status.
type EventService struct {
	events EventStore
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore) *EventService {
	return &EventService{events: events}
}

// CreateEvent validates the request and delegates to the store.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, fmt.Errorf("%w: event title is required", model.ErrValidation)
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be a positive integer", model.ErrValidation)
	}
	if req.Capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity cannot exceed 100,000", model.ErrValidation)
	}
	event, err := s.events.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// ListEvents returns events, optionally filtered by status.
func (s *EventService) ListEvents(ctx context.Context, status string) ([]model.Event, error) {
	st := model.EventStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, status)
	}
	events, err := s.events.List(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}
