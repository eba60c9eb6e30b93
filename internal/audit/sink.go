package audit

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs to logger at info level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Write(_ context.Context, e Event) error {
	ev := s.logger.Info()
	if e.Status == StatusFailure {
		ev = s.logger.Warn()
	}
	ev = ev.
		Str("event_id", e.ID).
		Time("occurred_at", e.OccurredAt).
		Str("action", e.Action).
		Str("rule", e.RuleName).
		Str("status", e.Status)
	if e.RequestID != "" {
		ev = ev.Str("request_id", e.RequestID)
	}
	if e.Source.IPAddress != "" {
		ev = ev.Str("ip", e.Source.IPAddress)
	}
	if e.Fingerprint != "" {
		ev = ev.Str("fingerprint", e.Fingerprint)
	}
	if e.PreviousFingerprint != "" {
		ev = ev.Str("previous_fingerprint", e.PreviousFingerprint)
	}
	if e.ErrorMessage != "" {
		ev = ev.Str("error", e.ErrorMessage)
	}
	ev.Msg("rule audit")
	return nil
}

// MemorySink keeps events in memory. Useful for tests and for a recent-events
// view.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events in write order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// MultiSink fans an event out to several sinks and returns the first error.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
