package event

import (
	"context"
	"log/slog"
)

// Sink receives every terminal login outcome. Implementations must be safe
// for concurrent use and should return quickly; slow consumers belong behind
// a ChannelSink.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) Emit(context.Context, Event) {}

// SlogSink writes each event to a structured logger. Failure kinds log at
// warn so operators can alert on them without extra mapping.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(ctx context.Context, e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"kind", string(e.Kind),
		"identifier", e.Identifier,
		"ip", e.IP,
	}
	for k, v := range e.Detail {
		attrs = append(attrs, k, v)
	}

	switch e.Kind {
	case KindLoginRequestViaTotp, KindLoggedInViaTotp:
		logger.InfoContext(ctx, "login_event", attrs...)
	default:
		logger.WarnContext(ctx, "login_event", attrs...)
	}
}

// ChannelSink buffers events for an external consumer. Emit never blocks the
// login path: when the buffer is full the event is dropped.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, e Event) {
	select {
	case s.events <- e:
	default:
	}
}

// Events exposes the buffered stream for the consumer.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}
