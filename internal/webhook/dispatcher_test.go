package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/TimurManjosov/rulesmith/internal/audit"
	"github.com/TimurManjosov/rulesmith/internal/telemetry"
)

type received struct {
	headers http.Header
	body    []byte
}

func newReceiver(t *testing.T, failures int32) (*httptest.Server, func() []received) {
	t.Helper()
	var (
		mu    sync.Mutex
		got   []received
		calls atomic.Int32
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, received{headers: r.Header.Clone(), body: body})
		mu.Unlock()
		if calls.Add(1) <= failures {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ts.Close)
	return ts, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), got...)
	}
}

func noBackoff(int) time.Duration { return 0 }

func TestFromAudit(t *testing.T) {
	tests := []struct {
		name   string
		event  audit.Event
		want   string
		wantOK bool
	}{
		{"created", audit.Event{Action: audit.ActionCreated, Status: audit.StatusSuccess}, EventRuleCreated, true},
		{"replaced", audit.Event{Action: audit.ActionReplaced, Status: audit.StatusSuccess}, EventRuleReplaced, true},
		{"deleted", audit.Event{Action: audit.ActionDeleted}, EventRuleDeleted, true},
		{"failure is skipped", audit.Event{Action: audit.ActionCreated, Status: audit.StatusFailure}, "", false},
		{"unknown action", audit.Event{Action: "renamed"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromAudit(tt.event)
			if ok != tt.wantOK || got.Type != tt.want {
				t.Fatalf("FromAudit() = %q, %v; want %q, %v", got.Type, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDispatcher_DeliversSignedEvents(t *testing.T) {
	ts, got := newReceiver(t, 0)
	d := NewDispatcher(Options{
		Endpoints: []Endpoint{{URL: ts.URL, Secret: "s3cret"}},
		Backoff:   noBackoff,
	})

	err := d.Write(context.Background(), audit.Event{
		ID:          "evt-1",
		Action:      audit.ActionCreated,
		RuleName:    "adults",
		Fingerprint: "abc",
		Status:      audit.StatusSuccess,
		RequestID:   "req-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Write(context.Background(), audit.Event{Action: audit.ActionCreated, RuleName: "x", Status: audit.StatusFailure})
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	deliveries := got()
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(deliveries))
	}
	r := deliveries[0]
	if !Verify("s3cret", r.body, r.headers.Get(HeaderSignature)) {
		t.Fatal("signature does not verify")
	}
	if r.headers.Get(HeaderEvent) != EventRuleCreated || r.headers.Get(HeaderDelivery) == "" {
		t.Fatalf("unexpected headers: %v", r.headers)
	}

	var event Event
	if err := json.Unmarshal(r.body, &event); err != nil {
		t.Fatal(err)
	}
	if event.ID != "evt-1" || event.Resource.Name != "adults" || event.Data.Fingerprint != "abc" || event.Metadata.RequestID != "req-1" {
		t.Fatalf("unexpected payload: %+v", event)
	}
}

func TestDispatcher_Retries(t *testing.T) {
	tests := []struct {
		name       string
		failures   int32
		maxRetries int
		wantCalls  int
		wantStatus string
	}{
		{"succeeds after retries", 2, 3, 3, "success"},
		{"gives up", 5, 1, 2, "failure"},
		{"no retries", 1, 0, 1, "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, got := newReceiver(t, tt.failures)
			reg := prometheus.NewRegistry()
			metrics := telemetry.NewMetrics(reg)

			var waits []int
			d := NewDispatcher(Options{
				Endpoints: []Endpoint{{URL: ts.URL, Secret: "k", MaxRetries: tt.maxRetries}},
				Backoff:   func(attempt int) time.Duration { waits = append(waits, attempt); return 0 },
				Metrics:   metrics,
			})
			d.Dispatch(Event{Type: EventRuleDeleted, Resource: Resource{Type: "rule", Name: "r"}})
			_ = d.Close()

			if n := len(got()); n != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", n, tt.wantCalls)
			}
			if len(waits) != tt.wantCalls-1 {
				t.Fatalf("backoff calls = %v", waits)
			}
			if n, err := testutil.GatherAndCount(reg, "webhook_deliveries_total"); err != nil || n != 1 {
				t.Fatalf("delivery series = %d, %v; want 1", n, err)
			}
			if !hasStatus(t, reg, tt.wantStatus) {
				t.Fatalf("missing status=%s series", tt.wantStatus)
			}
		})
	}
}

func hasStatus(t *testing.T, reg *prometheus.Registry, status string) bool {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "webhook_deliveries_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					return true
				}
			}
		}
	}
	return false
}

func TestDispatcher_EndpointFilter(t *testing.T) {
	all, gotAll := newReceiver(t, 0)
	deletes, gotDeletes := newReceiver(t, 0)
	d := NewDispatcher(Options{
		Endpoints: []Endpoint{
			{URL: all.URL},
			{URL: deletes.URL, Events: []string{EventRuleDeleted}},
		},
		Backoff: noBackoff,
	})
	d.Dispatch(Event{Type: EventRuleCreated})
	d.Dispatch(Event{Type: EventRuleReplaced})
	d.Dispatch(Event{Type: EventRuleDeleted})
	_ = d.Close()

	if n := len(gotAll()); n != 3 {
		t.Fatalf("catch-all endpoint got %d events, want 3", n)
	}
	if n := len(gotDeletes()); n != 1 {
		t.Fatalf("filtered endpoint got %d events, want 1", n)
	}
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(Options{})
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	// dropped silently after close
	d.Dispatch(Event{Type: EventRuleCreated})
}
