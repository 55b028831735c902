package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calprompt/calprompt/internal/config"
	"github.com/calprompt/calprompt/internal/metrics"
	"github.com/calprompt/calprompt/internal/utils"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/credential"
	"github.com/calprompt/calprompt/pkg/engine"
	"github.com/calprompt/calprompt/pkg/intent"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func setupAppTest(t *testing.T, cfg config.Application, stub *engine.StubEngine) (*httptest.Server, *calendar.StubCalendar) {
	clock := &utils.MockClock{FixedNow: testNow}
	store := calendar.NewStubCalendar(clock.Now)
	t.Cleanup(store.Cleanup)

	deps := BuildDependencies(cfg, Collaborators{
		Engine: stub,
		Stores: func(ctx context.Context, accessToken string) (calendar.Store, error) {
			return store, nil
		},
		Credentials: credential.NewHeaderProvider(),
		Clock:       clock,
	})
	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)
	return server, store
}

func postPrompt(t *testing.T, server *httptest.Server, token string, body string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/handle-prompt", bytes.NewBufferString(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestApp_HandlePrompt(t *testing.T) {
	server, store := setupAppTest(t, config.Defaults(), engine.NewToolCallStub(intent.ToolCreateEvent, `{
		"summary": "Lunch with Sam",
		"start": {"dateTime": "2024-03-11T12:00:00", "timeZone": "America/New_York"},
		"end": {"dateTime": "2024-03-11T13:00:00", "timeZone": "America/New_York"}
	}`))

	resp := postPrompt(t, server, "ya29.token", `{"prompt": "Schedule lunch with Sam tomorrow at noon", "timeZone": "America/New_York"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIdHeader))
	body := decodeBody(t, resp)
	assert.Equal(t, "event", body["type"])
	assert.Equal(t, "Event created successfully", body["message"])
	assert.Equal(t, 1, store.Calls.Create)
}

func TestApp_RejectsMissingCredentialBeforeEngine(t *testing.T) {
	stub := engine.NewStubEngine(engine.Reply{Text: "hi"})
	server, store := setupAppTest(t, config.Defaults(), stub)

	resp := postPrompt(t, server, "", `{"prompt": "List my events", "timeZone": "UTC"}`)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Unauthorized", body["error"])
	assert.Equal(t, 0, stub.Calls)
	assert.Equal(t, calendar.StubCalls{}, store.Calls)
}

func TestApp_ExpiredCredential(t *testing.T) {
	stub := engine.NewStubEngine(engine.Reply{Text: "hi"})
	server, _ := setupAppTest(t, config.Defaults(), stub)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/handle-prompt", bytes.NewBufferString(`{"prompt": "hi", "timeZone": "UTC"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer ya29.token")
	req.Header.Set(credential.ExpiresAtHeader, testNow.Add(-time.Minute).Format(time.RFC3339))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Authentication expired, please sign in again", decodeBody(t, resp)["error"])
	assert.Equal(t, 0, stub.Calls)
}

func TestApp_UnreadableExpiryIsRejected(t *testing.T) {
	stub := engine.NewStubEngine(engine.Reply{Text: "hi"})
	server, store := setupAppTest(t, config.Defaults(), stub)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/handle-prompt", bytes.NewBufferString(`{"prompt": "List my events", "timeZone": "UTC"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer ya29.token")
	req.Header.Set(credential.ExpiresAtHeader, "next tuesday")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, stub.Calls)
	assert.Equal(t, calendar.StubCalls{}, store.Calls)
}

func TestApp_CredentialExpiresBetweenRequests(t *testing.T) {
	clock := &utils.MockClock{FixedNow: testNow}
	stub := engine.NewStubEngine(engine.Reply{Text: "hi"})
	store := calendar.NewStubCalendar(clock.Now)
	t.Cleanup(store.Cleanup)
	deps := BuildDependencies(config.Defaults(), Collaborators{
		Engine: stub,
		Stores: func(ctx context.Context, accessToken string) (calendar.Store, error) {
			return store, nil
		},
		Credentials: credential.NewHeaderProvider(),
		Clock:       clock,
	})
	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)

	send := func() *http.Response {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/api/handle-prompt", bytes.NewBufferString(`{"prompt": "hi", "timeZone": "UTC"}`))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer ya29.token")
		req.Header.Set(credential.ExpiresAtHeader, testNow.Add(time.Minute).Format(time.RFC3339))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusOK, send().StatusCode)
	clock.Advance(2 * time.Minute)
	assert.Equal(t, http.StatusUnauthorized, send().StatusCode)
	assert.Equal(t, 1, stub.Calls)
}

func TestApp_RateLimit(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.RateLimit = 0.001
	cfg.Server.RateBurst = 1
	stub := engine.NewStubEngine(engine.Reply{Text: "hi"})
	server, _ := setupAppTest(t, cfg, stub)

	first := postPrompt(t, server, "ya29.token", `{"prompt": "hi", "timeZone": "UTC"}`)
	second := postPrompt(t, server, "ya29.token", `{"prompt": "hi", "timeZone": "UTC"}`)

	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, 1, stub.Calls)
}

func TestApp_HealthAndMetrics(t *testing.T) {
	server, _ := setupAppTest(t, config.Defaults(), engine.NewStubEngine(engine.Reply{Text: "hi"}))
	postPrompt(t, server, "ya29.token", `{"prompt": "hi", "timeZone": "UTC"}`)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `calprompt_prompts_total{envelope="text",error="",intent="text"} 1`)
	assert.Contains(t, string(raw), `route="/api/handle-prompt"`)
}

func TestRecovery(t *testing.T) {
	r := mux.NewRouter()
	r.Use(requestLogging(metrics.New()))
	r.Use(recovery)
	r.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}
