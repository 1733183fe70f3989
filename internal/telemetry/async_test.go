package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, context.Background(), &Event{EventType: "test"})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}

	EmitAsync(emitter, context.Background(), nil)
	time.Sleep(10 * time.Millisecond)

	if got := len(emitter.getEvents()); got != 0 {
		t.Errorf("expected 0 events, got %d", got)
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	event := &Event{
		PrincipalID: "p-1",
		SessionID:   "s-1",
		EventType:   "session.issued",
		Source:      "mobile",
	}

	EmitAsync(emitter, context.Background(), event)

	deadline := time.Now().Add(time.Second)
	for len(emitter.getEvents()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event was never emitted")
		}
		time.Sleep(time.Millisecond)
	}
	got := emitter.getEvents()[0]
	if got.PrincipalID != "p-1" || got.EventType != "session.issued" {
		t.Errorf("event = %+v, want principal p-1 and type session.issued", got)
	}
}

func TestEmitAsync_UsesBackgroundContext(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // request context is already gone

	EmitAsync(emitter, ctx, &Event{EventType: "session.retired"})

	deadline := time.Now().Add(time.Second)
	for len(emitter.getEvents()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("emit should survive request-context cancellation")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEmitAsync_EmitErrorIsSwallowed(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("broker down")}

	// Must not panic or propagate anywhere.
	EmitAsync(emitter, context.Background(), &Event{EventType: "session.issued"})
	time.Sleep(10 * time.Millisecond)
}

func TestShutdownDrainDuration_AtLeastEmitTimeout(t *testing.T) {
	if ShutdownDrainDuration < emitTimeout {
		t.Errorf("ShutdownDrainDuration = %v, must be >= emitTimeout %v", ShutdownDrainDuration, emitTimeout)
	}
}
