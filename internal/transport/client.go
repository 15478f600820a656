// Package transport is the HTTP client for the remote conversation service.
//
// Every operation is a single request/response exchange bounded by a fixed
// timeout measured from dispatch. Failures are normalized to *Error.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/auth"
	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
	"github.com/capitalize-ai/retention-chat/pkg/metrics"
)

// DefaultTimeout bounds every request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 1 << 20

// Stages of building a request, reported when one fails.
const (
	stageEncode = "encode request"
	stageBuild  = "build request"
	stageToken  = "obtain token"
)

// Operation names, used for logs, metrics and spans.
const (
	OpInitiateChat    = "initiate_chat"
	OpSendMessage     = "send_message"
	OpRespondToOffer  = "respond_to_offer"
	OpGetConversation = "get_conversation"
)

// Client talks to the conversation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tokens     auth.TokenSource
	tracer     trace.Tracer
	logger     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTokenSource attaches a bearer token to every request.
func WithTokenSource(ts auth.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithTracer sets the tracer used for client spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		tracer:     otel.Tracer("github.com/capitalize-ai/retention-chat/internal/transport"),
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("transport")
	return c
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// InitiateChat starts a retention conversation.
func (c *Client) InitiateChat(ctx context.Context, req *model.StartConversationRequest) (*model.StartConversationResponse, error) {
	resp, err := do[model.StartConversationResponse](ctx, c, OpInitiateChat, http.MethodPost, "/conversations/start", req)
	if err != nil {
		return nil, err
	}
	if resp.ConversationID == "" {
		return nil, decodeError(OpInitiateChat, http.StatusOK, errors.New("missing conversationId"))
	}
	return resp, nil
}

// SendMessage sends a user message and returns the AI reply.
func (c *Client) SendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	body := *req
	if body.MessageType == "" {
		body.MessageType = model.MessageTypeText
	}
	return do[model.SendMessageResponse](ctx, c, OpSendMessage, http.MethodPost, "/conversations/message", &body)
}

// RespondToOffer accepts or rejects a retention offer.
func (c *Client) RespondToOffer(ctx context.Context, req *model.OfferResponseRequest) (*model.OfferResponse, error) {
	resp, err := do[model.OfferResponse](ctx, c, OpRespondToOffer, http.MethodPost, "/conversations/offer", req)
	if err != nil {
		return nil, err
	}
	resp.ConfirmationMessage = resp.Confirmation()
	if resp.Outcome == model.OutcomeNone {
		// Older services omit the outcome; the decision implies it.
		resp.Outcome = model.OutcomeRejected
		if req.Accepted {
			resp.Outcome = model.OutcomeAccepted
		}
	}
	return resp, nil
}

// GetConversation fetches the full conversation.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return do[model.Conversation](ctx, c, OpGetConversation, http.MethodGet, "/conversations/"+url.PathEscape(conversationID), nil)
}

func do[T any](parent context.Context, c *Client, op, method, path string, body any) (*T, error) {
	start := time.Now()

	budget := c.timeout
	if deadline, ok := parent.Deadline(); ok {
		if left := time.Until(deadline); left < budget {
			budget = left
		}
	}

	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "conversation."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("retention.operation", op),
		),
	)
	defer span.End()

	correlationID := uuid.New().String()
	log := c.logger.With(
		zap.String("op", op),
		zap.String("correlation_id", correlationID),
	)

	status, data, err := c.roundTrip(ctx, method, path, body, correlationID)
	if err != nil {
		terr := classify(op, budget, parent, ctx, err)
		finish(span, log, op, start, terr)
		return nil, terr
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	var env model.Envelope[T]
	if jerr := json.Unmarshal(data, &env); jerr != nil {
		var terr *Error
		if status < 200 || status >= 300 {
			terr = serverError(op, status, "")
		} else {
			terr = decodeError(op, status, jerr)
		}
		finish(span, log, op, start, terr)
		return nil, terr
	}

	var terr *Error
	switch {
	case status < 200 || status >= 300:
		terr = serverError(op, status, envMessage(env.Error))
	case !env.Success:
		terr = serverError(op, status, envMessage(env.Error))
	case env.Data == nil:
		terr = decodeError(op, status, errors.New("response has no data"))
	}
	if terr != nil {
		finish(span, log, op, start, terr)
		return nil, terr
	}

	finish(span, log, op, start, nil)
	return env.Data, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, correlationID string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, &prepareError{stage: stageEncode, err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, &prepareError{stage: stageBuild, err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Correlation-ID", correlationID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, nil, &prepareError{stage: stageToken, err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

// classify maps a failed round trip onto an *Error. budget is the time the
// call actually had: the client timeout, or less when the caller's own
// deadline was sooner.
func classify(op string, budget time.Duration, parent, ctx context.Context, err error) *Error {
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return timeoutError(op, budget, err)
		}
		return canceledError(op, err)
	}
	var pe *prepareError
	if errors.As(err, &pe) {
		return requestError(op, pe)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return timeoutError(op, budget, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return timeoutError(op, budget, err)
	}
	return networkError(op, err)
}

func envMessage(e *model.APIError) string {
	if e == nil {
		return ""
	}
	return e.Message
}

func finish(span trace.Span, log *logger.Logger, op string, start time.Time, err *Error) {
	duration := time.Since(start)
	if err == nil {
		metrics.RecordTransport(op, "ok", duration.Seconds())
		span.SetStatus(codes.Ok, "")
		log.Debug("conversation service call succeeded", zap.Duration("duration", duration))
		return
	}

	metrics.RecordTransport(op, string(err.Kind), duration.Seconds())
	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Kind))
	log.Warn("conversation service call failed",
		zap.String("kind", string(err.Kind)),
		zap.Int("status", err.Status),
		zap.Duration("duration", duration),
		zap.NamedError("cause", err.Err),
		zap.String("message", err.Message),
	)
}
