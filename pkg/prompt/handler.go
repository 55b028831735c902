package prompt

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/calprompt/calprompt/internal/rest"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/credential"
	"github.com/calprompt/calprompt/pkg/operation"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{s}
}

// HandlePrompt is POST /api/handle-prompt with body {prompt, timeZone}.
func (h *Handler) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, fmt.Errorf("%w: %v", rest.ErrInvalidRequest, err))
		return
	}

	envelope, err := h.service.Handle(r.Context(), currentCredential(r), req)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, envelope)
}

// ListEvents is GET /api/calendar/events?maxResults=N.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	maxResults := operation.DefaultMaxResults
	if raw := r.URL.Query().Get("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			rest.WriteError(w, fmt.Errorf("%w: maxResults must be a positive integer", rest.ErrInvalidRequest))
			return
		}
		maxResults = n
	}

	envelope, err := h.service.ListEvents(r.Context(), currentCredential(r), maxResults)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, envelope)
}

// CommitEvent is POST /api/calendar/events?timeZone=Z with a CalendarEvent body.
func (h *Handler) CommitEvent(w http.ResponseWriter, r *http.Request) {
	var event calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		rest.WriteError(w, fmt.Errorf("%w: %v", rest.ErrInvalidRequest, err))
		return
	}

	envelope, err := h.service.Commit(r.Context(), currentCredential(r), event, r.URL.Query().Get("timeZone"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, envelope)
}

// currentCredential returns the request's credential, or the zero one which fails Check.
func currentCredential(r *http.Request) credential.Credential {
	c, _ := credential.Current(r.Context())
	return c
}
