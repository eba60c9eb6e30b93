package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/rulesmith/internal/audit"
	"github.com/TimurManjosov/rulesmith/internal/telemetry"
)

const (
	// defaultQueueSize is the buffer size for the event queue
	defaultQueueSize = 1000

	defaultTimeout = 10 * time.Second

	// maxResponseBodySize limits how much of the response body is logged (1KB)
	maxResponseBodySize = 1024
)

// Request headers set on every delivery.
const (
	HeaderSignature = "X-Rulesmith-Signature"
	HeaderEvent     = "X-Rulesmith-Event"
	HeaderDelivery  = "X-Rulesmith-Delivery"
)

// Options configures a Dispatcher.
type Options struct {
	Endpoints []Endpoint
	QueueSize int
	// Backoff returns the wait before retry attempt+1. Defaults to 2^attempt
	// seconds.
	Backoff func(attempt int) time.Duration
	Client  *http.Client
	Metrics *telemetry.Metrics
	Logger  zerolog.Logger
}

// Dispatcher delivers rule change events to webhook endpoints from a
// background worker. It implements audit.Sink.
type Dispatcher struct {
	endpoints []Endpoint
	backoff   func(int) time.Duration
	client    *http.Client
	metrics   *telemetry.Metrics
	logger    zerolog.Logger

	mu     sync.RWMutex // guards closed and sends on queue
	queue  chan Event
	done   chan struct{}
	closed bool
}

// NewDispatcher creates a webhook dispatcher and starts its worker.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
	}
	if opts.Client == nil {
		// per-endpoint timeouts are applied through the request context
		opts.Client = &http.Client{}
	}
	d := &Dispatcher{
		endpoints: opts.Endpoints,
		backoff:   opts.Backoff,
		client:    opts.Client,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With().Str("component", "webhook").Logger(),
		queue:     make(chan Event, opts.QueueSize),
		done:      make(chan struct{}),
	}
	go d.worker()
	return d
}

// Close stops accepting events and waits for queued deliveries to finish.
// It is safe to call more than once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	return nil
}

// Write queues the webhook form of an audit event. Events that do not map
// to a webhook event are ignored.
func (d *Dispatcher) Write(_ context.Context, e audit.Event) error {
	if event, ok := FromAudit(e); ok {
		d.Dispatch(event)
	}
	return nil
}

var _ audit.Sink = (*Dispatcher)(nil)

// Dispatch queues an event for delivery without blocking. The event is
// dropped when the queue is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- event:
		d.logger.Debug().Str("event", event.Type).Str("rule", event.Resource.Name).Int("queued", len(d.queue)).Msg("event queued")
	default:
		d.logger.Error().Str("event", event.Type).Str("rule", event.Resource.Name).Int("queue_size", cap(d.queue)).Msg("queue full, dropping event")
	}
}

// worker processes events from the queue
func (d *Dispatcher) worker() {
	defer close(d.done)

	for event := range d.queue {
		for _, ep := range d.endpoints {
			if ep.wants(event.Type) {
				d.deliverWithRetry(context.Background(), ep, event)
			}
		}
	}
}

// deliverWithRetry posts event to ep, retrying failed attempts up to
// ep.MaxRetries times.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, ep Endpoint, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error().Err(err).Str("event", event.Type).Msg("failed to marshal event payload")
		d.metrics.ObserveWebhookDelivery(false)
		return
	}

	signature := Sign(ep.Secret, payload)
	deliveryID := uuid.NewString()
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := d.logger.With().Str("url", ep.URL).Str("event", event.Type).Str("delivery", deliveryID).Logger()

	for attempt := 0; attempt <= ep.MaxRetries; attempt++ {
		start := time.Now()
		status, body, err := d.post(ctx, ep.URL, timeout, payload, signature, event.Type, deliveryID)
		duration := time.Since(start)

		if err == nil && status >= 200 && status < 300 {
			logger.Info().Int("status", status).Dur("duration", duration).Int("attempt", attempt+1).Msg("delivery succeeded")
			d.metrics.ObserveWebhookDelivery(true)
			return
		}

		ev := logger.Warn().Int("status", status).Int("attempt", attempt+1).Int("max_attempts", ep.MaxRetries+1)
		if err != nil {
			ev = ev.Err(err)
		}
		if body != "" {
			ev = ev.Str("response", body)
		}

		if attempt == ep.MaxRetries {
			ev.Msg("delivery failed permanently")
			break
		}
		wait := d.backoff(attempt)
		ev.Dur("retry_in", wait).Msg("delivery failed")
		time.Sleep(wait)
	}
	d.metrics.ObserveWebhookDelivery(false)
}

func (d *Dispatcher) post(ctx context.Context, url string, timeout time.Duration, payload []byte, signature, eventType, deliveryID string) (int, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, deliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	return resp.StatusCode, string(body), nil
}
