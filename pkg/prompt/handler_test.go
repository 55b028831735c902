package prompt

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/credential"
	"github.com/calprompt/calprompt/pkg/engine"
	"github.com/calprompt/calprompt/pkg/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCredential(r *http.Request, c credential.Credential) *http.Request {
	return r.WithContext(credential.WithCredential(r.Context(), c))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandlePrompt_UpdateByExplicitId(t *testing.T) {
	f := setupServiceTest(t, engine.NewToolCallStub(intent.ToolUpdateEvent,
		`{"eventId": "E1", "patch": {"summary": "New title", "id": "malicious-id"}}`))
	f.store.Seed(calendar.Event{
		ID: "E1", ETag: "abc", Summary: "Old",
		Start: calendar.TimeSpec{DateTime: "2024-03-12T09:00:00", TimeZone: "UTC"},
		End:   calendar.TimeSpec{DateTime: "2024-03-12T10:00:00", TimeZone: "UTC"},
	})
	handler := NewHandler(f.service)

	body := bytes.NewBufferString(`{"prompt": "Rename event E1 to New title", "timeZone": "UTC"}`)
	r := withCredential(httptest.NewRequest(http.MethodPost, "/api/handle-prompt", body), validCredential)
	w := httptest.NewRecorder()
	handler.HandlePrompt(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "event", response["type"])
	assert.Equal(t, "Event updated successfully", response["message"])

	require.Len(t, f.store.Writes, 1)
	assert.Equal(t, "E1", f.store.Writes[0].ID)
	assert.Equal(t, "abc", f.store.Writes[0].ETag)
	assert.Equal(t, "New title", f.store.Writes[0].Summary)
}

func TestHandlePrompt_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		cred    credential.Credential
		status  int
		message string
	}{
		{"malformed body", `{"prompt":`, validCredential, http.StatusBadRequest, "Invalid request"},
		{"no credential", `{"prompt": "list", "timeZone": "UTC"}`, credential.Credential{}, http.StatusUnauthorized, "Unauthorized"},
		{"unknown zone", `{"prompt": "list", "timeZone": "Nowhere/Special"}`, validCredential, http.StatusBadRequest, "Invalid time zone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupServiceTest(t, engine.NewStubEngine(engine.Reply{Text: "hi"}))
			r := withCredential(httptest.NewRequest(http.MethodPost, "/api/handle-prompt", bytes.NewBufferString(tt.body)), tt.cred)
			w := httptest.NewRecorder()

			NewHandler(f.service).HandlePrompt(w, r)

			assert.Equal(t, tt.status, w.Code)
			response := decode(t, w)
			assert.Equal(t, false, response["success"])
			assert.Equal(t, tt.message, response["error"])
		})
	}
}

func TestHandlePrompt_WithoutCredentialInContext(t *testing.T) {
	f := setupServiceTest(t, engine.NewStubEngine(engine.Reply{Text: "hi"}))
	r := httptest.NewRequest(http.MethodPost, "/api/handle-prompt", bytes.NewBufferString(`{"prompt": "hi", "timeZone": "UTC"}`))
	w := httptest.NewRecorder()

	NewHandler(f.service).HandlePrompt(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, f.engine.Calls)
}

func TestListEventsHandler(t *testing.T) {
	f := setupServiceTest(t, engine.NewStubEngine(engine.Reply{Text: "hi"}))
	for i := 0; i < 12; i++ {
		f.store.Seed(calendar.Event{
			Summary: "Standup",
			Start:   calendar.TimeSpec{DateTime: "2024-03-11T09:00:00", TimeZone: "UTC"},
			End:     calendar.TimeSpec{DateTime: "2024-03-11T09:15:00", TimeZone: "UTC"},
		})
	}
	handler := NewHandler(f.service)

	w := httptest.NewRecorder()
	handler.ListEvents(w, withCredential(httptest.NewRequest(http.MethodGet, "/api/calendar/events", nil), validCredential))

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "events", response["type"])
	assert.Equal(t, float64(10), response["count"])

	w = httptest.NewRecorder()
	handler.ListEvents(w, withCredential(httptest.NewRequest(http.MethodGet, "/api/calendar/events?maxResults=3", nil), validCredential))
	assert.Equal(t, float64(3), decode(t, w)["count"])

	w = httptest.NewRecorder()
	handler.ListEvents(w, withCredential(httptest.NewRequest(http.MethodGet, "/api/calendar/events?maxResults=abc", nil), validCredential))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommitEventHandler(t *testing.T) {
	f := setupServiceTest(t, engine.NewStubEngine(engine.Reply{Text: "hi"}))
	body := bytes.NewBufferString(`{
		"summary": "Lunch with Sam",
		"start": {"dateTime": "2024-03-11T12:00", "timeZone": "America/New_York"},
		"end": {"dateTime": "2024-03-11T13:00", "timeZone": "America/New_York"}
	}`)
	r := withCredential(httptest.NewRequest(http.MethodPost, "/api/calendar/events?timeZone=America/New_York", body), validCredential)
	w := httptest.NewRecorder()

	NewHandler(f.service).CommitEvent(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	response := decode(t, w)
	assert.Equal(t, "Event created successfully", response["message"])
	event := response["event"].(map[string]any)
	assert.Equal(t, map[string]any{"dateTime": "2024-03-11T12:00:00", "timeZone": "America/New_York"}, event["start"])
	assert.Equal(t, 0, f.engine.Calls)
}
