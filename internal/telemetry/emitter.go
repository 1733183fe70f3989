package telemetry

import "context"

// EventEmitter emits session events (e.g. to Kafka or OTel Logs). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
