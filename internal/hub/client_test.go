package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Client{
		baseURL:    srv.URL,
		token:      "test-token",
		httpClient: srv.Client(),
		retries:    2,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestCallService_StripsSentinels(t *testing.T) {
	var received map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/services/climate/set_fan_mode", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`[]`))
	}))

	_, err := client.CallService(context.Background(), "climate", "set_fan_mode", map[string]any{
		"entity_id": "climate.bedroom",
		"fan_mode":  "NA",
		"data": map[string]any{
			"speed": "NA",
		},
		"temperature": 22.5,
	})
	require.NoError(t, err)

	assert.Equal(t, "climate.bedroom", received["entity_id"])
	assert.Equal(t, 22.5, received["temperature"])
	assert.NotContains(t, received, "fan_mode")
	assert.NotContains(t, received, "data", "empty map after stripping should be dropped")
}

func TestDoRaw_RetriesServerErrors(t *testing.T) {
	attempts := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"entity_id": "light.office", "state": "on"}`))
	}))

	state, err := client.GetState(context.Background(), "light.office")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "on", state.State)
}

func TestDoRaw_ClientErrorsFailFast(t *testing.T) {
	attempts := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetState(context.Background(), "light.missing")
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "4xx must not be retried")
}

func TestHistory_BuildsQuery(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`[[{"entity_id": "sensor.door", "state": "on"}]]`))
	}))

	start := time.Date(2025, 7, 30, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	history, err := client.History(context.Background(), HistoryOptions{
		EntityIDs: []string{"sensor.door", "binary_sensor.door"},
		Start:     start,
		End:       end,
		Minimal:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/history/period/2025-07-30T08:00:00Z", gotPath)
	assert.Equal(t, "sensor.door,binary_sensor.door", gotQuery.Get("filter_entity_id"))
	assert.Equal(t, "2025-07-30T09:00:00Z", gotQuery.Get("end_time"))
	assert.True(t, gotQuery.Has("minimal_response"))
	require.Len(t, history, 1)
	assert.Equal(t, "sensor.door", history[0][0].EntityID)
}

func TestPublishAutomation_RollsBackOnLoggedFault(t *testing.T) {
	var published, deleted, reloads int
	faultLog := time.Now().Format(logTimeLayout) + " ERROR (MainThread) [homeassistant.config] Invalid config for automation 'night light': required key not provided"

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/config/automation/config/") && r.Method == http.MethodPost:
			published++
			w.Write([]byte(`{"result": "ok"}`))
		case strings.HasPrefix(r.URL.Path, "/api/config/automation/config/") && r.Method == http.MethodDelete:
			deleted++
			w.Write([]byte(`{"result": "ok"}`))
		case r.URL.Path == "/api/services/automation/reload":
			reloads++
			w.Write([]byte(`[]`))
		case r.URL.Path == "/api/error_log":
			w.Write([]byte(faultLog))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	auto := &Automation{
		Alias:   "night light",
		Trigger: []any{map[string]any{"platform": "state"}},
		Action:  []any{map[string]any{"service": "light.turn_on"}},
	}

	_, err := client.PublishAutomation(context.Background(), auto, 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "night light")
	assert.Equal(t, 1, published)
	assert.Equal(t, 1, deleted, "faulted automation must be rolled back")
	assert.GreaterOrEqual(t, reloads, 2, "reload after publish and after rollback")
}

func TestPublishAutomation_KeepsCleanAutomation(t *testing.T) {
	var deleted int
	staleLog := "2020-01-01 00:00:00.000 ERROR (MainThread) [homeassistant.config] Invalid config for automation 'night light'"

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/config/automation/config/") && r.Method == http.MethodDelete:
			deleted++
			w.Write([]byte(`{}`))
		case r.URL.Path == "/api/error_log":
			w.Write([]byte(staleLog))
		default:
			w.Write([]byte(`{}`))
		}
	}))

	auto := &Automation{Alias: "night light", Trigger: []any{}, Action: []any{}}
	id, err := client.PublishAutomation(context.Background(), auto, 10*time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.False(t, auto.InitialState, "automations publish disabled pending confirmation")
	assert.Zero(t, deleted, "stale log entries must not trigger rollback")
}

func TestErrorsMentioning(t *testing.T) {
	since := time.Date(2025, 7, 30, 8, 0, 0, 0, time.Local)
	log := strings.Join([]string{
		"2025-07-30 07:59:00 ERROR (MainThread) [homeassistant.config] old fault in 'morning blinds'",
		"2025-07-30 08:00:05 ERROR (MainThread) [homeassistant.config] Invalid config for 'morning blinds'",
		"Traceback (most recent call last):",
		"  required key not provided @ data['trigger']",
		"2025-07-30 08:00:06 WARNING (MainThread) [homeassistant.setup] unrelated warning",
	}, "\n")

	faults := errorsMentioning(log, "morning blinds", since)
	if len(faults) != 1 {
		t.Fatalf("errorsMentioning() = %d faults, want 1", len(faults))
	}
	if !strings.Contains(faults[0], "required key not provided") {
		t.Errorf("fault should include traceback continuation, got %q", faults[0])
	}
}

func TestParseAutomation(t *testing.T) {
	t.Run("single document", func(t *testing.T) {
		auto, err := ParseAutomation("alias: wake up\ntrigger:\n  - platform: time\n    at: \"07:00\"\naction:\n  - service: light.turn_on\n")
		require.NoError(t, err)
		assert.Equal(t, "wake up", auto.Alias)
		require.Len(t, auto.Trigger, 1)
	})

	t.Run("list wrapper", func(t *testing.T) {
		auto, err := ParseAutomation("- alias: wake up\n  trigger: []\n  action: []\n")
		require.NoError(t, err)
		assert.Equal(t, "wake up", auto.Alias)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseAutomation("{{ not yaml")
		require.Error(t, err)
	})
}
