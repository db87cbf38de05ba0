package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dietexpert/backend/internal/config"
	"dietexpert/backend/internal/logger"
	"dietexpert/backend/internal/observability"
	"dietexpert/backend/internal/server"
	"dietexpert/backend/internal/store"
)

var version = "dev"

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", "error", err)
	}

	ctx := context.Background()
	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: "dietexpert-api",
		Environment: cfg.AppEnv,
		Version:     version,
	})

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", "driver", cfg.StoreDriver, "error", err)
	}
	defer st.Close()

	var ai server.AIClient
	if cfg.OpenAIAPIKey != "" {
		ai = server.NewOpenAIResponsesClient(cfg, log)
	} else {
		log.Warn("OPENAI_API_KEY not set, answering chat with the mock client")
	}

	app, err := server.New(cfg, st, ai, log)
	if err != nil {
		log.Fatal("failed to build app", "error", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("dietexpert api listening", "addr", "http://localhost:"+cfg.AppPort, "env", cfg.AppEnv)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn("otel shutdown failed", "error", err)
	}
	log.Info("server stopped")
}
