package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/bootstrap"
	"github.com/sitepass/subscription-whitelist/internal/config"
	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
	"github.com/sitepass/subscription-whitelist/internal/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate(cfg.DatabaseURL()); err != nil {
		return err
	}

	c, err := bootstrap.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Error("shutdown incomplete", "error", err)
		}
	}()

	if err := c.Listener.Run(ctx, c.Bus); err != nil {
		return fmt.Errorf("start status listener: %w", err)
	}

	if cfg.Scheduler.Enabled {
		c.Scheduler.Start()
		defer c.Scheduler.Stop()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           c.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func migrate(dsn string) error {
	m, err := database.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	changed, err := m.Up()
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if changed {
		slog.Info("database migrations applied")
	}
	return nil
}
