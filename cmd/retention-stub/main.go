// Package main runs the scripted retention conversation service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/config"
	"github.com/capitalize-ai/retention-chat/internal/handler"
	"github.com/capitalize-ai/retention-chat/internal/llm"
	natsclient "github.com/capitalize-ai/retention-chat/internal/nats"
	"github.com/capitalize-ai/retention-chat/internal/service"
	"github.com/capitalize-ai/retention-chat/internal/telemetry"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
	"github.com/capitalize-ai/retention-chat/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, logger.WithFormat(cfg.LogFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting conversation service")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "retention-stub", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Server-side lifecycle events go to the log, and to JetStream when enabled
	sinks := []telemetry.Sink{telemetry.NewLogSink(log)}
	readiness := map[string]handler.ReadinessCheck{}
	if cfg.TelemetryNATS {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     "retention-stub",
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}

		natsSink := telemetry.NewAsyncSink("service", streamManager, log, 0)
		defer natsSink.Close(context.Background())
		sinks = append(sinks, natsSink)
		readiness["nats"] = natsClient.IsConnected
	}

	// Initialize service
	opts := []service.Option{service.WithOfferAfter(cfg.OfferAfterMessages)}
	if cfg.ReplyLLM != "" {
		llmClient, err := llm.NewClient(llm.Provider(cfg.ReplyLLM), cfg.ReplyAPIKey())
		if err != nil {
			log.Warn("LLM replies disabled, using keyword script", zap.Error(err))
		} else {
			replies := service.NewLLMReplies(llmClient, cfg.ReplyModel, cfg.ReplyMaxTokens)
			opts = append(opts, service.WithReplyGenerator(replies, cfg.ReplyTimeout))
			log.Info("LLM replies enabled", zap.String("provider", llmClient.Name()))
		}
	}
	svc := service.NewRetentionService(telemetry.Multi(sinks...), log, opts...)

	router := handler.NewRouter(svc, handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Readiness:         readiness,
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
