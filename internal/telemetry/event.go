// Package telemetry provides the best-effort session event pipeline: an
// emitter interface, an async fire-and-forget helper, and backends for Kafka
// and OTel logs.
package telemetry

import "time"

// Event is one session lifecycle event. Serialized as JSON onto the Kafka
// topic; the worker's Loki labels are derived from EventType and Source.
type Event struct {
	PrincipalID string    `json:"principalId,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	EventType   string    `json:"eventType"`
	Source      string    `json:"source,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
