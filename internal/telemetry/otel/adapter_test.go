package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"gemwallet/backend/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &telemetry.Event{PrincipalID: "p-1"}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	event := &telemetry.Event{
		PrincipalID: "p-1",
		SessionID:   "s-1",
		EventType:   "session.issued",
		Source:      "mobile",
		Metadata:    `{"key":"value"}`,
		CreatedAt:   created,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec

	if rec.Body().Empty() {
		t.Error("body should be set when metadata is non-empty")
	}
	if got := rec.Body().AsString(); got != `{"key":"value"}` {
		t.Errorf("body = %q, want %q", got, event.Metadata)
	}
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}

	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{
		"principal_id": "p-1",
		"session_id":   "s-1",
		"event_type":   "session.issued",
		"source":       "mobile",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %s = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_EmptyFieldsOmitted(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	event := &telemetry.Event{
		EventType: "session.sweep",
		Source:    "sweeper",
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if !rec.Body().Empty() {
		t.Error("body should be empty when metadata is empty")
	}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		if kv.Key == "principal_id" || kv.Key == "session_id" {
			t.Errorf("attr %s should be omitted when empty", kv.Key)
		}
		return true
	})
	if rec.Timestamp().IsZero() {
		t.Error("timestamp should default to now when unset")
	}
}
