package webhook

import (
	"slices"
	"time"

	"github.com/TimurManjosov/rulesmith/internal/audit"
)

// Event types that can trigger webhooks
const (
	EventRuleCreated  = "rule.created"
	EventRuleReplaced = "rule.replaced"
	EventRuleDeleted  = "rule.deleted"
)

// Event represents a webhook event that will be sent to subscribed endpoints
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Resource  Resource  `json:"resource"`
	Data      EventData `json:"data"`
	Metadata  Metadata  `json:"metadata"`
}

// Resource identifies the resource that triggered the event
type Resource struct {
	Type string `json:"type"` // always "rule"
	Name string `json:"name"`
}

// EventData carries the rule fingerprints before and after the change.
type EventData struct {
	Fingerprint         string `json:"fingerprint,omitempty"`
	PreviousFingerprint string `json:"previous_fingerprint,omitempty"`
}

// Metadata contains additional context about the event
type Metadata struct {
	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Endpoint is one subscriber. An empty Events list receives every event type.
type Endpoint struct {
	URL        string
	Secret     string
	Events     []string
	MaxRetries int
	Timeout    time.Duration
}

func (e Endpoint) wants(eventType string) bool {
	return len(e.Events) == 0 || slices.Contains(e.Events, eventType)
}

var actionTypes = map[string]string{
	audit.ActionCreated:  EventRuleCreated,
	audit.ActionReplaced: EventRuleReplaced,
	audit.ActionDeleted:  EventRuleDeleted,
}

// FromAudit converts a successful audit event into a webhook event. Failed
// attempts and unknown actions report false.
func FromAudit(e audit.Event) (Event, bool) {
	typ, ok := actionTypes[e.Action]
	if !ok || e.Status == audit.StatusFailure {
		return Event{}, false
	}
	return Event{
		ID:        e.ID,
		Type:      typ,
		Timestamp: e.OccurredAt,
		Resource:  Resource{Type: "rule", Name: e.RuleName},
		Data: EventData{
			Fingerprint:         e.Fingerprint,
			PreviousFingerprint: e.PreviousFingerprint,
		},
		Metadata: Metadata{
			IPAddress: e.Source.IPAddress,
			RequestID: e.RequestID,
		},
	}, true
}
