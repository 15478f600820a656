// Package telemetry emits conversation lifecycle events to analytics sinks.
//
// Sinks are fire-and-forget: Track never blocks the caller for I/O and never
// reports failure back. Delivery problems are logged and counted.
package telemetry

import (
	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
)

// Sink receives lifecycle events.
type Sink interface {
	Track(event model.EventType, props map[string]any)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(event model.EventType, props map[string]any)

// Track calls f.
func (f SinkFunc) Track(event model.EventType, props map[string]any) {
	f(event, props)
}

// Nop discards every event.
var Nop Sink = SinkFunc(func(model.EventType, map[string]any) {})

type multi []Sink

// Multi fans each event out to every sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Track(event model.EventType, props map[string]any) {
	for _, s := range m {
		s.Track(event, props)
	}
}

// LogSink writes events to the structured log at info level.
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a sink that logs events.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log.Named("telemetry")}
}

// Track logs the event.
func (s *LogSink) Track(event model.EventType, props map[string]any) {
	s.logger.Info("lifecycle event",
		zap.String("event", string(event)),
		zap.Any("properties", props),
	)
}
