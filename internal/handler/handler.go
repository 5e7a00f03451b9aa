// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer. Every response body
// has the shape {"data": ..., "error": {"message": ...}}.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/auth"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/ratelimit"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/service"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/token"
)

// Handler holds all HTTP handlers for the registration API.
type Handler struct {
	events        *service.EventService
	registrations *service.RegistrationManager
	accounts      *service.AccountService
	gate          *auth.Gate
	log           *slog.Logger
}

// New constructs a Handler.
func New(
	events *service.EventService,
	registrations *service.RegistrationManager,
	accounts *service.AccountService,
	gate *auth.Gate,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		events:        events,
		registrations: registrations,
		accounts:      accounts,
		gate:          gate,
		log:           log,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v model.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, model.Envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.Envelope{Error: &model.ErrorBody{Message: msg}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps an error to its HTTP status and client-visible message.
// Unknown errors become a generic 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrInvalidSignature),
		errors.Is(err, token.ErrExpired):
		return http.StatusUnauthorized, "unauthenticated: " + rootMessage(err)
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, model.ErrInvalidCredentials.Error()
	case errors.Is(err, model.ErrEventNotFound):
		return http.StatusNotFound, model.ErrEventNotFound.Error()
	case errors.Is(err, model.ErrEventNotActive),
		errors.Is(err, model.ErrEventFull),
		errors.Is(err, model.ErrAlreadyRegistered),
		errors.Is(err, model.ErrNotRegistered),
		errors.Is(err, model.ErrEmailTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, ratelimit.ErrRateLimited.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// rootMessage returns the message of the sentinel at the bottom of a
// token error without leaking parser detail.
func rootMessage(err error) string {
	for _, sentinel := range []error{auth.ErrMissingToken, token.ErrMalformed, token.ErrInvalidSignature, token.ErrExpired} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, msg)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

// SignUp handles POST /auth/signup
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req model.CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	acct, err := h.accounts.SignUp(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, acct)
}

// Login handles POST /auth/login
// Returns a signed bearer token and the session it encodes.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.accounts.Login(r.Context(), req, clientIP(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events (admin only)
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, event)
}

// ListEvents handles GET /events?status=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}
	writeData(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, event)
}

// ─── Registrations ────────────────────────────────────────────────────────────

// Register handles POST /events/{id}/register
// Registers the authenticated caller for the event.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	reg, err := h.registrations.Register(r.Context(), chi.URLParam(r, "id"), sess.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, reg)
}

// Cancel handles DELETE /events/{id}/register
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	eventID := chi.URLParam(r, "id")

	if err := h.registrations.Cancel(r.Context(), eventID, sess.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, model.RegistrationState{EventID: eventID, Registered: false})
}

// RegistrationStatus handles GET /events/{id}/registration
func (h *Handler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	eventID := chi.URLParam(r, "id")

	ok, err := h.registrations.IsRegistered(r.Context(), eventID, sess.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, model.RegistrationState{EventID: eventID, Registered: ok})
}

// ListRegistrations handles GET /events/{id}/registrations (admin only)
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registrations.ListRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if regs == nil {
		regs = []model.Registration{}
	}
	writeData(w, http.StatusOK, regs)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
