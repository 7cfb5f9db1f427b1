package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmr-b5/powerwatch/internal/metrics"
	"github.com/pmr-b5/powerwatch/internal/server"
	"github.com/pmr-b5/powerwatch/pkg/alerts"
	"github.com/pmr-b5/powerwatch/pkg/model"
	"github.com/pmr-b5/powerwatch/pkg/monitor"
	"github.com/pmr-b5/powerwatch/pkg/storage"
)

var now = time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)

type countingNotifier struct{ sent int }

func (n *countingNotifier) Name() string { return "email" }

func (n *countingNotifier) Send(context.Context, alerts.Alert) (string, error) {
	n.sent++
	return "id", nil
}

type failingNotifier struct{ calls int }

func (n *failingNotifier) Name() string { return "email" }

func (n *failingNotifier) Send(context.Context, alerts.Alert) (string, error) {
	n.calls++
	return "", &alerts.SendError{Notifier: "email", Err: errors.New("rate limited")}
}

type fixture struct {
	srv      *server.Server
	store    storage.Storage
	notifier *countingNotifier
}

func setupServer(t *testing.T) *fixture {
	t.Helper()
	notifier := &countingNotifier{}
	f := setupServerWith(t, notifier)
	f.notifier = notifier
	return f
}

func setupServerWith(t *testing.T, notifiers ...alerts.Notifier) *fixture {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	clock := func() time.Time { return now }
	rec := metrics.NewRecorder()
	checker := monitor.NewChecker(server.Source(store), notifiers, logger,
		monitor.WithClock(clock), monitor.WithMetrics(rec))

	srv := server.NewServer(server.Config{
		Store:      store,
		Checker:    checker,
		Rule:       monitor.NewDelayRule([]string{"ops@example.com"}, nil),
		CronSecret: "cron-secret",
		Metrics:    rec,
		Logger:     logger,
		Now:        clock,
	})
	return &fixture{srv: srv, store: store}
}

func (f *fixture) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	f := setupServer(t)

	w := f.do("GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_GetStatus_InitializesUnknown(t *testing.T) {
	f := setupServer(t)

	w := f.do("GET", "/api/electricity-status", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp model.StatusPayload
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "unknown", resp.Status)
	assert.Equal(t, "2024-01-01T01:00:00.000Z", resp.LastUpdated)

	stored, err := f.store.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unknown", stored.Status)
}

func TestServer_SetStatus(t *testing.T) {
	f := setupServer(t)

	w := f.do("POST", "/api/electricity-status", `{"status":"down"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp model.StatusPayload
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "down", resp.Status)
	assert.Equal(t, "2024-01-01T01:00:00.000Z", resp.LastUpdated)

	w = f.do("GET", "/api/electricity-status", "", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "down", resp.Status)
}

func TestServer_SetStatus_Invalid(t *testing.T) {
	f := setupServer(t)

	for _, body := range []string{`{"status":"unknown"}`, `{"status":1}`, `{}`, `not json`, ``} {
		t.Run(body, func(t *testing.T) {
			w := f.do("POST", "/api/electricity-status", body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, `Invalid status. Must be "up" or "down".`, resp["error"])
		})
	}
}

func TestServer_Cron_Unauthorized(t *testing.T) {
	f := setupServer(t)

	for name, header := range map[string]map[string]string{
		"missing": nil,
		"wrong":   {"Authorization": "Bearer nope"},
		"scheme":  {"Authorization": "cron-secret"},
	} {
		t.Run(name, func(t *testing.T) {
			w := f.do("GET", "/api/cron/check-electricity", "", header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	assert.Zero(t, f.notifier.sent)
}

func TestServer_Cron_EmptySecretDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := server.NewServer(server.Config{Logger: logger})

	req := httptest.NewRequest("GET", "/api/cron/check-electricity", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_Cron_SendsWarning(t *testing.T) {
	f := setupServer(t)
	_, err := f.store.SetStatus(context.Background(), "up", now.Add(-30*time.Minute))
	require.NoError(t, err)

	w := f.do("GET", "/api/cron/check-electricity", "", map[string]string{"Authorization": "Bearer cron-secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "warning_email_sent", resp["action"])
	assert.InDelta(t, 30.0, resp["timeDifferenceMinutes"], 1e-9)
	assert.Equal(t, 1, f.notifier.sent)
}

func TestServer_Cron_WarningNotDelivered(t *testing.T) {
	failing := &failingNotifier{}
	tests := map[string][]alerts.Notifier{
		"no notifiers":     nil,
		"notifier failing": {failing},
	}

	for name, notifiers := range tests {
		t.Run(name, func(t *testing.T) {
			f := setupServerWith(t, notifiers...)
			_, err := f.store.SetStatus(context.Background(), "up", now.Add(-30*time.Minute))
			require.NoError(t, err)

			w := f.do("GET", "/api/cron/check-electricity", "", map[string]string{"Authorization": "Bearer cron-secret"})
			assert.Equal(t, http.StatusOK, w.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, "warning_email_failed", resp["action"])
			assert.Equal(t, "Failed to send warning email", resp["error"])
			assert.InDelta(t, 30.0, resp["timeDifferenceMinutes"], 1e-9)
		})
	}
	assert.Equal(t, 1, failing.calls)
}

func TestServer_Cron_ZeroAgeKeepsTimeDifference(t *testing.T) {
	f := setupServer(t)
	_, err := f.store.SetStatus(context.Background(), "up", now)
	require.NoError(t, err)

	w := f.do("GET", "/api/cron/check-electricity", "", map[string]string{"Authorization": "Bearer cron-secret"})

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "no_action_needed", resp["action"])
	require.Contains(t, resp, "timeDifferenceMinutes")
	assert.Equal(t, 0.0, resp["timeDifferenceMinutes"])
}

func TestServer_Cron_NoAction(t *testing.T) {
	f := setupServer(t)
	_, err := f.store.SetStatus(context.Background(), "up", now.Add(-2*time.Minute))
	require.NoError(t, err)

	w := f.do("GET", "/api/cron/check-electricity", "", map[string]string{"Authorization": "Bearer cron-secret"})

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "no_action_needed", resp["action"])
	assert.Zero(t, f.notifier.sent)
}

func TestServer_Cron_NoStatus(t *testing.T) {
	f := setupServer(t)

	w := f.do("GET", "/api/cron/check-electricity", "", map[string]string{"Authorization": "Bearer cron-secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Could not fetch electricity status", resp["error"])
	assert.NotContains(t, resp, "timeDifferenceMinutes")
	assert.Zero(t, f.notifier.sent)
}

func TestServer_Metrics(t *testing.T) {
	f := setupServer(t)
	_, err := f.store.SetStatus(context.Background(), "up", now.Add(-30*time.Minute))
	require.NoError(t, err)
	f.do("GET", "/api/cron/check-electricity", "", map[string]string{"Authorization": "Bearer cron-secret"})

	w := f.do("GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `powerwatch_checks_total{action="notified",job="delay"} 1`)
	assert.Contains(t, w.Body.String(), "powerwatch_status_age_minutes 30")
}
