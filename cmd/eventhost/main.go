package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/zerohouse/eventhost/internal/config"
	"github.com/zerohouse/eventhost/internal/events"
	"github.com/zerohouse/eventhost/internal/heygen"
	"github.com/zerohouse/eventhost/internal/httpapi"
	"github.com/zerohouse/eventhost/internal/mail"
	"github.com/zerohouse/eventhost/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := events.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("event store init failed: %v", err)
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("event store: in-memory (no DATABASE_URL)")
	} else {
		log.Printf("event store: postgres")
	}

	provider := heygen.NewClient(heygen.Config{
		APIKey:  cfg.HeyGenAPIKey,
		BaseURL: cfg.HeyGenBaseURL,
		Timeout: cfg.ProviderTimeout,
	})
	if cfg.HeyGenAPIKey == "" {
		log.Printf("warning: HEYGEN_API_KEY not set, avatar endpoints will refuse requests")
	}

	mailer := mail.NewSender(mail.Config{
		APIKey: cfg.MailgunAPIKey,
		Domain: cfg.MailgunDomain,
		From:   cfg.MailgunFrom,
	})
	if !mailer.Configured() {
		log.Printf("warning: mailgun not configured, invitation email disabled")
	}

	api := httpapi.New(cfg, provider, store, mailer, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
