package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/credential"
	"github.com/calprompt/calprompt/pkg/engine"
	"github.com/calprompt/calprompt/pkg/intent"
	"github.com/calprompt/calprompt/pkg/operation"
	"github.com/calprompt/calprompt/pkg/resolver"
	"github.com/calprompt/calprompt/pkg/timezone"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrRateLimited    = errors.New("too many requests")
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// WriteError writes err as an ErrorResponse with the status its class maps to.
func WriteError(w http.ResponseWriter, err error) {
	status, response := Classify(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	} else {
		log.Debugf("request rejected with %d: %v", status, err)
	}
	WriteJSON(w, status, response)
}

// Classify maps an error of the pipeline onto an HTTP status and the body describing it.
// Authorization is checked first since store errors may wrap a rejected credential.
func Classify(err error) (int, ErrorResponse) {
	var invalidOutput *intent.InvalidStructuredOutputError
	var malformed *timezone.MalformedTimeError

	switch {
	case errors.Is(err, credential.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{Error: credential.Message(err)}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{Error: "Too many requests, please retry later"}
	case errors.As(err, &invalidOutput):
		log.Warnf("engine produced invalid structured output for %q: %s (raw: %s)", invalidOutput.Tool, invalidOutput.Reason, invalidOutput.Raw)
		return http.StatusUnprocessableEntity, ErrorResponse{Error: "Could not understand the request", Details: invalidOutput.Reason}
	case errors.As(err, &malformed):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid date or time", Details: malformed.Error()}
	case errors.Is(err, timezone.ErrUnknownZone):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid time zone", Details: err.Error()}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, intent.ErrEmptyPrompt),
		errors.Is(err, resolver.ErrEmptyQuery),
		errors.Is(err, operation.ErrMissingTarget):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Details: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: "The request timed out"}
	case errors.Is(err, calendar.ErrStoreUnavailable):
		return http.StatusInternalServerError, ErrorResponse{Error: "Calendar service unavailable", Details: err.Error()}
	case errors.Is(err, engine.ErrEngineUnavailable):
		return http.StatusInternalServerError, ErrorResponse{Error: "Language service unavailable", Details: err.Error()}
	case errors.Is(err, operation.ErrUnsupportedIntent):
		return http.StatusInternalServerError, ErrorResponse{Error: "Unsupported operation", Details: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Details: err.Error()}
}
