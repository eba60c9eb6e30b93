package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Action constants for audit logging
const (
	ActionCreated  = "created"
	ActionReplaced = "replaced"
	ActionDeleted  = "deleted"
)

// Status constants for audit logging
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator interface for testable ID generation
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator implements IDGenerator using random (v4) UUIDs
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string { return uuid.NewString() }

// Source represents request metadata
type Source struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Event is one entry of the rule lifecycle trail.
type Event struct {
	ID                  string    `json:"id"`
	OccurredAt          time.Time `json:"occurred_at"`
	RequestID           string    `json:"request_id,omitempty"`
	Source              Source    `json:"source"`
	Action              string    `json:"action"`
	RuleName            string    `json:"rule_name"`
	Fingerprint         string    `json:"fingerprint,omitempty"`
	PreviousFingerprint string    `json:"previous_fingerprint,omitempty"`
	Status              string    `json:"status"`
	ErrorMessage        string    `json:"error_message,omitempty"`
}

type sourceKey struct{}

// WithSource attaches request metadata to ctx for later events.
func WithSource(ctx context.Context, src Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, src)
}

// SourceFromContext returns the metadata stored by WithSource.
func SourceFromContext(ctx context.Context) Source {
	src, _ := ctx.Value(sourceKey{}).(Source)
	return src
}

// NewEvent starts an event for ruleName, filling the request ID and source
// from ctx. Status defaults to success.
func NewEvent(ctx context.Context, action, ruleName string) Event {
	return Event{
		RequestID: middleware.GetReqID(ctx),
		Source:    SourceFromContext(ctx),
		Action:    action,
		RuleName:  ruleName,
		Status:    StatusSuccess,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the event clock.
func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// WithIDGenerator overrides the event ID generator.
func WithIDGenerator(g IDGenerator) Option { return func(s *Service) { s.idgen = g } }

// Service writes audit events to a Sink from a background worker so callers
// never block on the sink. Events are dropped (and logged) when the queue is
// full.
type Service struct {
	sink   Sink
	clock  Clock
	idgen  IDGenerator
	logger zerolog.Logger

	queue     chan Event
	stopCh    chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewService creates an audit service and starts its worker.
func NewService(sink Sink, logger zerolog.Logger, queueSize int, opts ...Option) *Service {
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &Service{
		sink:   sink,
		clock:  SystemClock{},
		idgen:  UUIDGenerator{},
		logger: logger.With().Str("component", "audit").Logger(),
		queue:  make(chan Event, queueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.worker()
	return s
}

func (s *Service) worker() {
	defer close(s.done)
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case <-s.stopCh:
			for {
				select {
				case event := <-s.queue:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.Write(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to write audit event")
	}
}

// Log queues an event. It is safe on a nil *Service and after Close, where
// it does nothing.
func (s *Service) Log(event Event) {
	if s == nil || s.closed.Load() {
		return
	}
	if event.ID == "" {
		event.ID = s.idgen.Generate()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if event.Status == "" {
		event.Status = StatusSuccess
	}

	select {
	case s.queue <- event:
	default:
		s.logger.Warn().Str("action", event.Action).Str("rule", event.RuleName).Msg("audit queue full, dropping event")
	}
}

// Close stops the worker after draining queued events. It is safe to call
// more than once.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
	})
	<-s.done
	return nil
}
