package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goonsradar/goonsradar/internal/app"
	"github.com/goonsradar/goonsradar/internal/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poller and the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, level, err := loadConfig(os.Stdout)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return err
	}

	slog.Info("goonsradar starting",
		"config", cfgFile,
		"feed", cfg.Feed.URL,
		"interval", cfg.Refresh.Interval,
		"http_addr", cfg.HTTP.Addr,
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to build app", "err", err)
		return err
	}
	a.Start(ctx)
	defer a.Close()

	// Hot reload applies the log level only; everything else needs a restart.
	if _, err := os.Stat(cfgFile); err == nil {
		go func() {
			if err := config.Watch(ctx, cfgFile, func(updated *config.Config) {
				lvl, _ := config.ParseLevel(updated.LogLevel)
				level.Set(lvl)
				slog.Info("config hot-reloaded", "log_level", lvl.String())
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			slog.Error("HTTP server stopped", "err", err)
			return err
		}
	}

	slog.Info("goonsradar shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	return httpSrv.Shutdown(shutdownCtx)
}
