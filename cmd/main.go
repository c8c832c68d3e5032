package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"facility-notify/internal/api"
	"facility-notify/internal/config"
	"facility-notify/internal/db"
	"facility-notify/internal/enrich"
	"facility-notify/internal/feed"
	"facility-notify/internal/ingest"
	"facility-notify/internal/logging"
	"facility-notify/internal/manager"
	"facility-notify/internal/popup"
	"facility-notify/internal/providers"
	"facility-notify/internal/store"
	"facility-notify/internal/ws"
	"facility-notify/pkg/email"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.Logging.Dir, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Initialize ingest pipeline
	svc := ingest.New(dbConn, logger, cfg)
	var wg sync.WaitGroup
	svc.Start(&wg)

	consumer := ingest.NewConsumer(cfg, svc)
	logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	consumer.Start(ctx, &wg)

	// Presentation: dashboard hub plus optional Telegram escalation
	hub := ws.NewHub(logger)
	sinks := []popup.Sink{hub}
	if cfg.Telegram.BotToken != "" {
		tg, err := providers.NewTelegramSink(cfg, logger)
		if err != nil {
			logger.Errorf("Telegram escalation disabled: %v", err)
		} else {
			sinks = append(sinks, tg)
		}
	}
	timing := popup.Timing{
		Duration:       cfg.Popup.Duration,
		UrgentDuration: cfg.Popup.UrgentDuration,
		CloseDelay:     cfg.Popup.CloseDelay,
	}
	queue := popup.NewQueue(timing, logger, sinks...)
	hub.SetController(queue)

	// Session manager: feed subscription, catch-up, acknowledgements
	listener := feed.NewListener(dbConn.Pool, logger)
	resolver := enrich.NewResolver(dbConn, logger)
	mgr := manager.New(hub, dbConn, listener, resolver, store.New(), queue, logger)
	if err := mgr.Start(ctx); err != nil {
		log.Fatalf("Failed to start notification manager: %v", err)
	}

	// Mail relay
	relay := email.NewRelay(
		&http.Client{Timeout: cfg.Email.Timeout},
		cfg.Email.ProviderURL,
		cfg.Email.ServiceID,
		cfg.Email.TemplateID,
		cfg.Email.PublicKey,
	)

	// API server
	handler := api.NewHandler(dbConn, dbConn, relay, logger)
	wsHandler := api.NewWSHandler(hub, logger)
	router := api.NewRouter(cfg, logger, handler, wsHandler)

	srv := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API server shutdown failed: %v", err)
	}
	mgr.Stop()
	if err := consumer.Close(); err != nil {
		logger.Errorf("Kafka consumer close failed: %v", err)
	}
	svc.Stop()
	wg.Wait()
	logger.Info("Shutdown complete")
}
