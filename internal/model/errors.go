package model

import "errors"

// Business-rule errors returned by the registration manager. They describe
// current state and are never retried internally.
var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventNotActive    = errors.New("event is not open for registration")
	ErrEventFull         = errors.New("event is fully booked")
	ErrAlreadyRegistered = errors.New("user already registered for this event")
	ErrNotRegistered     = errors.New("user is not registered for this event")
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ErrValidation marks bad caller input.
var ErrValidation = errors.New("validation error")
