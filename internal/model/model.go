// Package model defines the core domain types for the event registration system.
package model

import "time"

// EventStatus is the lifecycle state of an event as seen by registration.
type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventFull      EventStatus = "full"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

// Valid reports whether s is one of the known event statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventActive, EventFull, EventCancelled, EventCompleted:
		return true
	}
	return false
}

// Event represents a registrable event. Capacity accounting fields
// (RegisteredCount, Status) are only written by the registration manager.
type Event struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	StartsAt        *time.Time  `json:"starts_at,omitempty"`
	Capacity        int         `json:"capacity"`
	RegisteredCount int         `json:"registered_count"`
	Status          EventStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return e.Status == EventFull || e.RegisteredCount >= e.Capacity
}

// RegistrationStatus is the state of a single registration row.
type RegistrationStatus string

const (
	RegistrationConfirmed  RegistrationStatus = "confirmed"
	RegistrationCancelled  RegistrationStatus = "cancelled"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
)

// Registration represents a user's registration for an event. Rows are
// never deleted; cancellation is a status change.
type Registration struct {
	ID        string             `json:"id"`
	EventID   string             `json:"event_id"`
	UserID    string             `json:"user_id"`
	Status    RegistrationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Role is the authorization level carried by a session.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Satisfies reports whether a holder of r may perform an operation
// requiring role required. Admins satisfy every role.
func (r Role) Satisfies(required Role) bool {
	if r == RoleAdmin {
		return true
	}
	return r == required
}

// Session is the verified identity decoded from a bearer token.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Account is a stored user credential. Admins are accounts with RoleAdmin.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	Capacity    int        `json:"capacity"`
}

// CredentialsRequest is the payload for signup and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token   string   `json:"token"`
	Session *Session `json:"session"`
}

// RegistrationState answers whether the caller holds a confirmed registration.
type RegistrationState struct {
	EventID    string `json:"event_id"`
	Registered bool   `json:"registered"`
}

// Envelope is the response body convention: exactly one of Data or Error is set.
type Envelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody carries a human-readable error message.
type ErrorBody struct {
	Message string `json:"message"`
}
