package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/clock"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/service"
)

// MemoryStore keeps events, registrations and accounts in process memory.
// Atomic units lock the event they touch for their whole duration and stage
// writes until commit, so concurrent units on one event serialize exactly
// like the FOR UPDATE path in RegistrationRepository.
type MemoryStore struct {
	mu            sync.RWMutex
	events        map[string]*model.Event
	registrations []*model.Registration
	accounts      map[string]*model.Account

	locksMu    sync.Mutex
	eventLocks map[string]*sync.Mutex

	clock clock.Clock
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock used to stamp new events.
func WithClock(clk clock.Clock) MemoryOption {
	return func(s *MemoryStore) { s.clock = clk }
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		events:     make(map[string]*model.Event),
		accounts:   make(map[string]*model.Account),
		eventLocks: make(map[string]*sync.Mutex),
		clock:      clock.Real(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ service.RegistrationStore = (*MemoryStore)(nil)
	_ service.EventStore        = (*MemoryStore)(nil)
	_ service.AccountStore      = (*MemoryStore)(nil)
)

// PutEvent stores e as-is, replacing any event with the same id.
func (s *MemoryStore) PutEvent(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = &e
}

// Create inserts a new active event.
func (s *MemoryStore) Create(_ context.Context, req model.CreateEventRequest) (*model.Event, error) {
	e := model.Event{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		Capacity:    req.Capacity,
		Status:      model.EventActive,
		CreatedAt:   s.clock.Now(),
	}
	s.PutEvent(e)
	return &e, nil
}

// List returns events newest first, optionally filtered by status.
func (s *MemoryStore) List(_ context.Context, status model.EventStatus) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Event
	for _, e := range s.events {
		if status == "" || e.Status == status {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetByID returns a copy of the event or model.ErrEventNotFound.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

// EventExists reports whether the event is present.
func (s *MemoryStore) EventExists(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[eventID]
	return ok, nil
}

// IsRegistered reports whether a committed confirmed row exists.
func (s *MemoryStore) IsRegistered(_ context.Context, eventID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confirmedLocked(eventID, userID) != nil, nil
}

// ListByEvent returns every registration row for an event in creation order.
func (s *MemoryStore) ListByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Registration
	for _, r := range s.registrations {
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// CountConfirmed returns the number of committed confirmed rows for an event.
func (s *MemoryStore) CountConfirmed(eventID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.registrations {
		if r.EventID == eventID && r.Status == model.RegistrationConfirmed {
			n++
		}
	}
	return n
}

// CreateAccount stores acct keyed by its lower-cased email.
func (s *MemoryStore) CreateAccount(_ context.Context, acct *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(acct.Email)
	if _, ok := s.accounts[key]; ok {
		return model.ErrEmailTaken
	}
	cp := *acct
	s.accounts[key] = &cp
	return nil
}

// GetAccountByEmail returns the account or model.ErrAccountNotFound.
func (s *MemoryStore) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// WithinEventTx runs fn as one atomic unit.
func (s *MemoryStore) WithinEventTx(ctx context.Context, fn func(tx service.RegistrationTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		store:   s,
		locked:  make(map[string]*sync.Mutex),
		updates: make(map[string]model.Registration),
		events:  make(map[string]eventCounters),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// eventLock returns the unit lock for an existing event, or nil when the
// event is unknown.
func (s *MemoryStore) eventLock(eventID string) *sync.Mutex {
	s.mu.RLock()
	_, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.eventLocks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.eventLocks[eventID] = l
	}
	return l
}

func (s *MemoryStore) confirmedLocked(eventID, userID string) *model.Registration {
	for _, r := range s.registrations {
		if r.EventID == eventID && r.UserID == userID && r.Status == model.RegistrationConfirmed {
			return r
		}
	}
	return nil
}

type eventCounters struct {
	count  int
	status model.EventStatus
}

type memTx struct {
	store   *MemoryStore
	locked  map[string]*sync.Mutex
	inserts []model.Registration
	updates map[string]model.Registration
	events  map[string]eventCounters
}

func (t *memTx) release() {
	for _, l := range t.locked {
		l.Unlock()
	}
	t.locked = nil
}

func (t *memTx) LockEvent(_ context.Context, eventID string) (*model.Event, error) {
	if _, held := t.locked[eventID]; !held {
		// Events are never removed, so an id seen here stays valid.
		l := t.store.eventLock(eventID)
		if l == nil {
			return nil, model.ErrEventNotFound
		}
		l.Lock()
		t.locked[eventID] = l
	}

	t.store.mu.RLock()
	e, ok := t.store.events[eventID]
	var cp model.Event
	if ok {
		cp = *e
	}
	t.store.mu.RUnlock()
	if !ok {
		return nil, model.ErrEventNotFound
	}

	if c, staged := t.events[eventID]; staged {
		cp.RegisteredCount = c.count
		cp.Status = c.status
	}
	return &cp, nil
}

func (t *memTx) FindConfirmed(_ context.Context, eventID, userID string) (*model.Registration, error) {
	for i := len(t.inserts) - 1; i >= 0; i-- {
		r := t.inserts[i]
		if r.EventID == eventID && r.UserID == userID && r.Status == model.RegistrationConfirmed {
			cp := r
			return &cp, nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, r := range t.store.registrations {
		if r.EventID != eventID || r.UserID != userID {
			continue
		}
		cur := *r
		if u, ok := t.updates[r.ID]; ok {
			cur = u
		}
		if cur.Status == model.RegistrationConfirmed {
			return &cur, nil
		}
	}
	return nil, nil
}

func (t *memTx) InsertRegistration(_ context.Context, reg *model.Registration) error {
	t.inserts = append(t.inserts, *reg)
	return nil
}

func (t *memTx) UpdateRegistrationStatus(_ context.Context, reg *model.Registration) error {
	for i := range t.inserts {
		if t.inserts[i].ID == reg.ID {
			t.inserts[i] = *reg
			return nil
		}
	}
	t.updates[reg.ID] = *reg
	return nil
}

func (t *memTx) UpdateEventCounters(_ context.Context, eventID string, registeredCount int, status model.EventStatus) error {
	if _, held := t.locked[eventID]; !held {
		return fmt.Errorf("update event counters: event %s not locked", eventID)
	}
	t.events[eventID] = eventCounters{count: registeredCount, status: status}
	return nil
}

// commit validates every staged write before applying any of them.
func (t *memTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]*model.Registration, len(s.registrations))
	for _, r := range s.registrations {
		byID[r.ID] = r
	}
	for id := range t.updates {
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("update registration %s: no row", id)
		}
	}
	for eventID, c := range t.events {
		e, ok := s.events[eventID]
		if !ok {
			return model.ErrEventNotFound
		}
		if c.count < 0 || c.count > e.Capacity {
			return fmt.Errorf("update event counters: count %d out of range for event %s", c.count, eventID)
		}
	}
	for _, ins := range t.inserts {
		if ins.Status != model.RegistrationConfirmed {
			continue
		}
		if cur := s.confirmedLocked(ins.EventID, ins.UserID); cur != nil {
			if u, ok := t.updates[cur.ID]; !ok || u.Status == model.RegistrationConfirmed {
				return model.ErrAlreadyRegistered
			}
		}
	}

	for id, u := range t.updates {
		*byID[id] = u
	}
	for _, ins := range t.inserts {
		r := ins
		s.registrations = append(s.registrations, &r)
	}
	for eventID, c := range t.events {
		s.events[eventID].RegisteredCount = c.count
		s.events[eventID].Status = c.status
	}
	return nil
}
