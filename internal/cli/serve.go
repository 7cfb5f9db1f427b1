package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmr-b5/powerwatch/internal/metrics"
	"github.com/pmr-b5/powerwatch/internal/server"
	"github.com/pmr-b5/powerwatch/pkg/monitor"
	"github.com/pmr-b5/powerwatch/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the electricity-status API and the cron check endpoint",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}

	logger := newLogger(cfg)

	store, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	notifiers, err := initNotifiers(cfg)
	if err != nil {
		return err
	}
	if cfg.Email.APIKey == "" {
		logger.Warn("RESEND_API_KEY is not set, cron checks will not send email")
	}
	if cfg.Server.CronSecret == "" {
		logger.Warn("CRON_SECRET is not set, cron endpoint is disabled")
	}

	rules, err := initRules(cfg, "delay")
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	checker := monitor.NewChecker(server.Source(store), notifiers, logger,
		monitor.WithMetrics(recorder),
	)

	apiServer := server.NewServer(server.Config{
		Store:      store,
		Checker:    checker,
		Rule:       rules[0],
		CronSecret: cfg.Server.CronSecret,
		Metrics:    recorder,
		Logger:     logger,
	})

	readTimeout, writeTimeout := cfg.ServerTimeouts()
	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "listen", cfg.Server.Listen)
		fmt.Fprintf(os.Stderr, "powerwatch listening on %s\n", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-cmd.Context().Done():
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}
