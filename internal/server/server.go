package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pmr-b5/powerwatch/internal/metrics"
	"github.com/pmr-b5/powerwatch/pkg/model"
	"github.com/pmr-b5/powerwatch/pkg/monitor"
	"github.com/pmr-b5/powerwatch/pkg/storage"
)

// Server hosts the electricity-status API and the cron-triggered delay check.
type Server struct {
	store      storage.Storage
	checker    *monitor.Checker
	rule       monitor.Rule
	cronSecret string
	metrics    *metrics.Recorder
	mux        *http.ServeMux
	logger     *slog.Logger
	now        func() time.Time
}

// Config wires the server's collaborators.
type Config struct {
	Store   storage.Storage
	Checker *monitor.Checker
	// Rule is evaluated by the cron endpoint.
	Rule monitor.Rule
	// CronSecret guards the cron endpoint. Empty disables it.
	CronSecret string
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewServer creates an API server.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:      cfg.Store,
		checker:    cfg.Checker,
		rule:       cfg.Rule,
		cronSecret: cfg.CronSecret,
		metrics:    cfg.Metrics,
		mux:        http.NewServeMux(),
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/electricity-status", s.handleGetStatus)
	s.mux.HandleFunc("POST /api/electricity-status", s.handleSetStatus)
	s.mux.HandleFunc("GET /api/cron/check-electricity", s.handleCron)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Source exposes the stored status as a monitor.Source.
func Source(store storage.Storage) monitor.Source {
	return monitor.SourceFunc(func(ctx context.Context) (*model.StatusRecord, error) {
		return store.GetStatus(ctx)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rec, err := s.store.GetStatus(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		rec, err = s.store.SetStatus(ctx, model.StatusUnknown, s.now())
	}
	if err != nil {
		s.logger.Error("read status", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to read status"})
		return
	}

	writeJSON(w, http.StatusOK, rec.Payload())
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		Status *string `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil ||
		body.Status == nil || (*body.Status != model.StatusUp && *body.Status != model.StatusDown) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: `Invalid status. Must be "up" or "down".`})
		return
	}

	rec, err := s.store.SetStatus(ctx, *body.Status, s.now())
	if err != nil {
		s.logger.Error("update status", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to update status"})
		return
	}

	s.logger.Info("status updated", "status", rec.Status)
	writeJSON(w, http.StatusOK, rec.Payload())
}

type cronResponse struct {
	Success               bool     `json:"success"`
	Action                string   `json:"action,omitempty"`
	TimeDifferenceMinutes *float64 `json:"timeDifferenceMinutes,omitempty"`
	Error                 string   `json:"error,omitempty"`
}

func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	results, err := s.checker.Run(r.Context(), s.rule)
	if err != nil {
		writeJSON(w, http.StatusOK, cronResponse{Error: "Could not fetch electricity status"})
		return
	}

	resp := cronResponse{Success: true, Action: "no_action_needed"}
	if len(results) > 0 {
		age := results[0].AgeMinutes
		resp.TimeDifferenceMinutes = &age
		switch results[0].Action {
		case model.ActionNotified:
			resp.Action = "warning_email_sent"
		case model.ActionUndelivered:
			resp.Success = false
			resp.Action = "warning_email_failed"
			resp.Error = "Failed to send warning email"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cronSecret == "" {
		return false
	}
	want := "Bearer " + s.cronSecret
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
