package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
	"github.com/capitalize-ai/retention-chat/pkg/metrics"
)

// Publisher delivers a single event to a remote collector.
type Publisher interface {
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// AsyncSink queues events and publishes them from a background goroutine.
// When the queue is full the event is dropped rather than blocking the caller.
type AsyncSink struct {
	name      string
	publisher Publisher
	logger    *logger.Logger
	timeout   time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan *model.ConversationEvent
	done   chan struct{}
}

// NewAsyncSink starts a sink that publishes through p. name labels metrics.
func NewAsyncSink(name string, p Publisher, log *logger.Logger, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AsyncSink{
		name:      name,
		publisher: p,
		logger:    log.Named("telemetry").With(zap.String("sink", name)),
		timeout:   5 * time.Second,
		now:       time.Now,
		queue:     make(chan *model.ConversationEvent, buffer),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Track enqueues the event without blocking.
func (s *AsyncSink) Track(event model.EventType, props map[string]any) {
	ev := &model.ConversationEvent{
		ID:         uuid.New().String(),
		Type:       event,
		Properties: props,
		CreatedAt:  s.now(),
	}
	if id, ok := props["conversationId"].(string); ok {
		ev.ConversationID = id
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(ev, "sink closed")
		return
	}

	select {
	case s.queue <- ev:
	default:
		s.drop(ev, "queue full")
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for ev := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if _, err := s.publisher.PublishEvent(ctx, ev); err != nil {
			s.drop(ev, err.Error())
		}
		cancel()
	}
}

func (s *AsyncSink) drop(ev *model.ConversationEvent, reason string) {
	metrics.TelemetryDropped.WithLabelValues(s.name).Inc()
	s.logger.Warn("telemetry event dropped",
		zap.String("event", string(ev.Type)),
		zap.String("conversation_id", ev.ConversationID),
		zap.String("reason", reason),
	)
}
