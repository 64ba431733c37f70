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

	"github.com/joho/godotenv"

	"github.com/replyflow/mailhook/internal/clientstate"
	"github.com/replyflow/mailhook/internal/config"
	"github.com/replyflow/mailhook/internal/db"
	"github.com/replyflow/mailhook/internal/dispatch"
	"github.com/replyflow/mailhook/internal/graph"
	"github.com/replyflow/mailhook/internal/observability"
	"github.com/replyflow/mailhook/internal/renewal"
	"github.com/replyflow/mailhook/internal/server"
	"github.com/replyflow/mailhook/internal/server/routes"
	"github.com/replyflow/mailhook/internal/tokens"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mailhook exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.New(observability.WrapSlogHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOpenTelemetry(ctx, log, observability.OpenTelemetryConfig(cfg.Observability))
	if err != nil {
		return fmt.Errorf("setup observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			log.Error("Failed to shut down observability", "error", err)
		}
	}()

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()

	codec := clientstate.NewCodec(cfg.Webhook.ClientStateSecret)
	graphClient := graph.NewClient(cfg.Graph.BaseURL, codec, graph.WithLeadTime(cfg.Graph.LeadTime))
	draftClient := dispatch.NewDraftClient(cfg.Draft.URL, cfg.Draft.APIKey, cfg.Draft.InternalSecret)
	if !draftClient.Configured() {
		log.Warn("Draft service not configured, inbound notifications will be rejected with missing_configuration")
	}
	dispatcher := dispatch.NewDispatcher(codec, draftClient, log)

	srv := server.New(log, cfg.Observability.Enabled)
	srv.RegisterRouter(routes.NewWebhookRoutes(dispatcher, log))
	srv.RegisterRouter(routes.NewSubscriptionRoutes(graphClient, database, cfg.NotificationURL(), cfg.Admin.Token, log))

	if cfg.Renewal.Enabled {
		tokenClient := tokens.NewClient(cfg.Renewal.TokenServiceURL, cfg.Draft.InternalSecret)
		if tokenClient.Configured() {
			runner := renewal.NewRunner(database, tokenClient, graphClient, cfg.Renewal.Interval, cfg.Renewal.Window, log)
			go runner.Run(ctx)
		} else {
			log.Warn("Renewal runner disabled, token service not configured")
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()
	log.Info("Starting server", "port", cfg.Server.Port, "notification_url", cfg.NotificationURL())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
