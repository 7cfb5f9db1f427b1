package alerts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmr-b5/powerwatch/pkg/alerts"
)

func TestSlackNotifier_Name(t *testing.T) {
	n := alerts.NewSlackNotifier("https://hooks.slack.com/test", "#test")
	assert.Equal(t, "slack", n.Name())
}

func TestSlackNotifier_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, http.MethodPost, r.Method)

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#power")

	_, err := n.Send(context.Background(), alerts.Alert{
		Kind:       alerts.KindDelay,
		Subject:    "PMR B5 - Electricity Status Update Delay Warning",
		Message:    "stale",
		Status:     "up",
		AgeMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "#power", received["channel"])

	attachments, ok := received["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	first := attachments[0].(map[string]any)
	assert.Equal(t, "PMR B5 - Electricity Status Update Delay Warning", first["title"])
	assert.Equal(t, "#ff9900", first["color"])
}

func TestSlackNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#test")
	_, err := n.Send(context.Background(), alerts.Alert{Kind: alerts.KindOutage})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSlackNotifier_KindColors(t *testing.T) {
	tests := []struct {
		kind  alerts.Kind
		color string
	}{
		{alerts.KindDelay, "#ff9900"},
		{alerts.KindOutage, "#cc0000"},
		{alerts.KindTest, "#36a64f"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			var received map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&received)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			n := alerts.NewSlackNotifier(server.URL, "#test")
			_, err := n.Send(context.Background(), alerts.Alert{Kind: tt.kind})
			require.NoError(t, err)

			first := received["attachments"].([]any)[0].(map[string]any)
			assert.Equal(t, tt.color, first["color"])
		})
	}
}
