package domain

import (
	"testing"
	"time"
)

func TestExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now.Add(time.Hour)}

	if s.Expired(now) {
		t.Error("session should not be expired before ExpiresAt")
	}
	if !s.Expired(now.Add(time.Hour)) {
		t.Error("session should be expired exactly at ExpiresAt")
	}
	if !s.Expired(now.Add(2 * time.Hour)) {
		t.Error("session should be expired after ExpiresAt")
	}
}

func TestHeartbeatStale(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	grace := 2 * time.Minute
	s := &Session{LastActivityAt: now}

	if s.HeartbeatStale(now.Add(90*time.Second), grace) {
		t.Error("session should not be stale inside the grace window")
	}
	if !s.HeartbeatStale(now.Add(2*time.Minute), grace) {
		t.Error("session should be stale exactly at the grace boundary")
	}
	if !s.HeartbeatStale(now.Add(10*time.Minute), grace) {
		t.Error("session should be stale well past the grace window")
	}
}
