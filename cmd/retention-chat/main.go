// Package main is a line-oriented terminal front end for the retention chat.
//
// It plays the role of the widget: it reads the chat state, renders new
// messages and offers, and turns typed input into chat actions.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/auth"
	"github.com/capitalize-ai/retention-chat/internal/chat"
	"github.com/capitalize-ai/retention-chat/internal/config"
	natsclient "github.com/capitalize-ai/retention-chat/internal/nats"
	"github.com/capitalize-ai/retention-chat/internal/telemetry"
	"github.com/capitalize-ai/retention-chat/internal/transport"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
	"github.com/capitalize-ai/retention-chat/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "retention-chat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel,
		logger.WithFormat(cfg.LogFormat),
		logger.WithOutput(cfg.LogFile),
	)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "retention-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	sink, closeSink, err := buildSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, log)
		defer srv.Close()
	}

	client := transport.New(cfg.APIBaseURL,
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithLogger(log),
		transport.WithTracer(tracing.Tracer("retention-chat/transport")),
		transport.WithTokenSource(&auth.JWTSource{
			Secret:         cfg.JWTSecret,
			UserID:         cfg.UserID,
			SubscriptionID: cfg.SubscriptionID,
			TTL:            cfg.JWTExpiration,
		}),
	)

	ui := newTerminal(os.Stdout)
	ctrl := chat.New(client, sink, log,
		chat.WithUser(cfg.UserID, cfg.SubscriptionID),
		chat.WithErrorHandler(ui.showError),
	)

	go func() {
		for done := range ctrl.Completions() {
			ui.showCompletion(done)
			log.Info("conversation finished",
				zap.String("conversation_id", done.ConversationID),
				zap.String("outcome", string(done.Outcome)),
				zap.Int("message_count", done.MessageCount),
			)
		}
	}()

	ctrl.OpenChat()
	defer ctrl.CloseChat()

	return loop(ctx, ctrl, ui, bufio.NewScanner(os.Stdin))
}

// buildSink assembles the telemetry fan-out: always the log, plus JetStream
// when enabled.
func buildSink(ctx context.Context, cfg *config.Config, log *logger.Logger) (telemetry.Sink, func(), error) {
	logSink := telemetry.NewLogSink(log)
	if !cfg.TelemetryNATS {
		return logSink, func() {}, nil
	}

	nc, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		Name:     "retention-chat",
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	streams := natsclient.NewStreamManager(nc)
	if err := streams.EnsureStream(ctx); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	async := telemetry.NewAsyncSink("nats", streams, log, 0)
	closeFn := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := async.Close(shutdownCtx); err != nil {
			log.Warn("telemetry queue not drained", zap.Error(err))
		}
		nc.Close()
	}
	return telemetry.Multi(logSink, async), closeFn, nil
}

func serveMetrics(addr string, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}

func loop(ctx context.Context, ctrl *chat.Controller, ui *terminal, in *bufio.Scanner) error {
	ui.help()
	if err := begin(ctx, ctrl, ui, in); err != nil {
		return err
	}

	for {
		ui.prompt(ctrl.State())
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		var err error
		switch line {
		case "/quit", "/exit":
			return nil
		case "/help":
			ui.help()
		case "/accept":
			err = ctrl.AcceptOffer(ctx)
		case "/reject":
			err = ctrl.RejectOffer(ctx)
		case "/refresh":
			ui.reset()
			err = ctrl.Refresh(ctx)
		case "/dismiss":
			ctrl.ClearError()
		case "/new":
			ui.reset()
			if err = begin(ctx, ctrl, ui, in); err != nil {
				return err
			}
		case "/close":
			ctrl.CloseChat()
			ui.reset()
			ui.info("Chat closed. Type /new to start again or /quit to leave.")
			ctrl.OpenChat()
		default:
			err = ctrl.SendMessage(ctx, line)
		}

		if err != nil && ctx.Err() != nil {
			return nil
		}
		if isInputError(err) {
			ui.info(inputHint(err))
		}
		ui.render(ctrl.State())
	}
}

// begin asks for a cancellation reason and starts a conversation.
func begin(ctx context.Context, ctrl *chat.Controller, ui *terminal, in *bufio.Scanner) error {
	reason, ok := ui.askReason(in)
	if !ok {
		return in.Err()
	}
	text := ""
	if reason.requiresText {
		if text, ok = ui.ask(in, "Tell us a little more: "); !ok {
			return in.Err()
		}
	}

	// Failures are rendered from state; the user retries with /new.
	_ = ctrl.StartConversation(ctx, reason.value, text)
	ui.render(ctrl.State())
	return nil
}

func isInputError(err error) bool {
	for _, target := range []error{
		chat.ErrNoConversation, chat.ErrConversationCompleted, chat.ErrNoOffer,
		chat.ErrBusy, chat.ErrEmptyMessage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func inputHint(err error) string {
	switch {
	case errors.Is(err, chat.ErrNoConversation):
		return "No conversation yet. Type /new to start one."
	case errors.Is(err, chat.ErrConversationCompleted):
		return "This conversation has ended. Type /new to start another."
	case errors.Is(err, chat.ErrNoOffer):
		return "There is no offer to respond to yet."
	case errors.Is(err, chat.ErrBusy):
		return "Still waiting for the last reply."
	default:
		return "Type a message, or /help."
	}
}
