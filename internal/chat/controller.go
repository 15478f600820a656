// Package chat implements the retention chat state machine.
//
// A Controller owns the single live conversation of a chat widget: its
// message history, the current retention offer, and the step the widget is
// in. Presentation code reads State and invokes the actions; it never mutates
// conversation data directly.
//
// Steps move initial → chatting → offer_presented → completed. A failed
// start moves to error. The outcome of an offer decision is applied
// atomically, so there is no separate decision_made step.
//
// Actions that call the conversation service block until the call settles
// and are safe to run from any goroutine. IsLoading becomes true before the
// call is dispatched. While a call is in flight every action except
// ClearError and CloseChat is rejected with ErrBusy. Each call is tagged with
// the conversation and generation it was issued against, and a response that
// arrives after the widget has moved on is discarded.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/internal/telemetry"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
	"github.com/capitalize-ai/retention-chat/pkg/metrics"
)

// Input errors. They are logged and returned but never stored in state or
// reported to the error handler.
var (
	ErrNoConversation        = errors.New("chat: no active conversation")
	ErrConversationCompleted = errors.New("chat: conversation already completed")
	ErrNoOffer               = errors.New("chat: no offer to respond to")
	ErrBusy                  = errors.New("chat: a request is already in flight")
	ErrInvalidReason         = errors.New("chat: invalid cancellation reason")
	ErrEmptyMessage          = errors.New("chat: message is empty")
)

// ErrStale is returned when a response arrives after the conversation it was
// issued for has been closed or replaced. The response is discarded.
var ErrStale = errors.New("chat: response discarded, conversation moved on")

// Transport is the conversation service as seen by the state machine.
type Transport interface {
	InitiateChat(ctx context.Context, req *model.StartConversationRequest) (*model.StartConversationResponse, error)
	SendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error)
	RespondToOffer(ctx context.Context, req *model.OfferResponseRequest) (*model.OfferResponse, error)
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
}

// Controller is the conversation state machine of one chat widget.
//
// Telemetry sinks are called while the controller's lock is held so that
// events are ordered with the transitions they describe; sinks must not call
// back into the Controller. State listeners and the error handler are called
// without the lock.
type Controller struct {
	transport Transport
	sink      telemetry.Sink
	logger    *logger.Logger
	now       func() time.Time

	userID         string
	subscriptionID string

	onError func(message string)
	onState func(state model.ChatState)

	completions chan model.Completion

	mu         sync.Mutex
	state      model.ChatState
	generation uint64
	seq        int
	inflight   context.CancelFunc
	reported   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithUser sets the user and subscription the widget acts for.
func WithUser(userID, subscriptionID string) Option {
	return func(c *Controller) {
		c.userID = userID
		c.subscriptionID = subscriptionID
	}
}

// WithErrorHandler registers a function called with the user-facing message
// of every failed conversation service call.
func WithErrorHandler(fn func(message string)) Option {
	return func(c *Controller) { c.onError = fn }
}

// WithStateListener registers a function called with a fresh snapshot after
// every state change. It may be called from several goroutines.
func WithStateListener(fn func(state model.ChatState)) Option {
	return func(c *Controller) { c.onState = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithCompletionBuffer sets the capacity of the Completions channel.
func WithCompletionBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.completions = make(chan model.Completion, n)
		}
	}
}

// New creates a Controller. A nil sink discards events and a nil logger
// discards logs.
func New(transport Transport, sink telemetry.Sink, log *logger.Logger, opts ...Option) *Controller {
	if sink == nil {
		sink = telemetry.Nop
	}
	if log == nil {
		log = logger.NewNop()
	}
	c := &Controller{
		transport:   transport,
		sink:        sink,
		logger:      log.Named("chat"),
		now:         time.Now,
		completions: make(chan model.Completion, 16),
		state:       model.ChatState{Step: model.StepInitial},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a deep copy of the current state.
func (c *Controller) State() model.ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Completions delivers one record per conversation that ends, whether by an
// offer decision or by abandonment.
func (c *Controller) Completions() <-chan model.Completion {
	return c.completions
}

// ticket identifies the conversation a request was issued against.
type ticket struct {
	generation     uint64
	conversationID string
	cancel         context.CancelFunc
}

// beginLocked marks the controller busy and derives a cancellable context
// for the request.
func (c *Controller) beginLocked(ctx context.Context) (ticket, context.Context) {
	rctx, cancel := context.WithCancel(ctx)
	c.state.IsLoading = true
	c.state.Error = ""
	c.inflight = cancel
	return ticket{
		generation:     c.generation,
		conversationID: c.conversationIDLocked(),
		cancel:         cancel,
	}, rctx
}

// settleLocked reports whether t still matches the live conversation, and if
// so clears the busy flag.
func (c *Controller) settleLocked(t ticket) bool {
	if t.generation != c.generation || t.conversationID != c.conversationIDLocked() {
		return false
	}
	c.state.IsLoading = false
	c.inflight = nil
	return true
}

// invalidateLocked drops whatever is in flight so a late response is a no-op.
func (c *Controller) invalidateLocked() {
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.generation++
	c.state.IsLoading = false
}

func (c *Controller) conversationIDLocked() string {
	if c.state.Conversation == nil {
		return ""
	}
	return c.state.Conversation.ID
}

// nextIDLocked returns a message id unique within the live conversation.
func (c *Controller) nextIDLocked(sender model.Sender) string {
	c.seq++
	return fmt.Sprintf("%s-%s-%d", c.conversationIDLocked(), sender, c.seq)
}

func (c *Controller) track(event model.EventType, props map[string]any) {
	c.sink.Track(event, props)
}

// abandonLocked reports the live conversation as abandoned if it has not
// already ended. It must run before the conversation is cleared.
func (c *Controller) abandonLocked() {
	conv := c.state.Conversation
	if conv == nil || c.state.Step == model.StepCompleted || c.reported {
		return
	}

	count := len(conv.Messages)
	c.track(model.EventConversationAbandoned, map[string]any{
		"conversationId": conv.ID,
		"messageCount":   count,
		"step":           string(c.state.Step),
		"reason":         string(conv.CancellationReason),
		"hadOffer":       c.state.CurrentOffer != nil,
	})
	c.publishLocked(model.Completion{
		ConversationID: conv.ID,
		Outcome:        model.OutcomeAbandoned,
		Offer:          c.state.CurrentOffer.Clone(),
		MessageCount:   count,
		At:             c.now(),
	})

	c.logger.WithConversation(conv.ID, c.userID).Info("conversation abandoned",
		zap.Int("message_count", count),
		zap.String("step", string(c.state.Step)),
	)
}

// publishLocked delivers the completion record for the live conversation at
// most once.
func (c *Controller) publishLocked(done model.Completion) {
	if c.reported {
		return
	}
	c.reported = true
	metrics.OutcomesTotal.WithLabelValues(string(done.Outcome)).Inc()

	select {
	case c.completions <- done:
	default:
		c.logger.Error("completion channel full, record dropped",
			zap.String("conversation_id", done.ConversationID),
			zap.String("outcome", string(done.Outcome)),
		)
	}
}

// failLocked records a failed service call.
func (c *Controller) failLocked(action string, err error, message string) {
	c.state.Error = message
	metrics.ChatErrorsTotal.WithLabelValues(action).Inc()
	c.track(model.EventChatError, map[string]any{
		"conversationId": c.conversationIDLocked(),
		"action":         action,
		"error":          message,
	})
	c.logger.Warn("chat action failed",
		zap.String("action", action),
		zap.String("conversation_id", c.conversationIDLocked()),
		zap.Error(err),
	)
}

// notify hands a snapshot to the state listener and, when message is set,
// reports it to the error handler. Call without the lock.
func (c *Controller) notify(message string) {
	if c.onState != nil {
		c.onState(c.State())
	}
	if message != "" && c.onError != nil {
		c.onError(message)
	}
}

// reject logs an input error and returns it.
func (c *Controller) reject(action string, err error) error {
	c.logger.Warn("chat action ignored",
		zap.String("action", action),
		zap.Error(err),
	)
	return err
}

// discard logs a response that arrived for a conversation that is gone.
func (c *Controller) discard(action string, t ticket) error {
	c.logger.Info("stale response discarded",
		zap.String("action", action),
		zap.String("conversation_id", t.conversationID),
		zap.Uint64("generation", t.generation),
	)
	return ErrStale
}
