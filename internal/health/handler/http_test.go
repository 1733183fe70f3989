package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubPinger struct{ err error }

func (s *stubPinger) PingContext(ctx context.Context) error { return s.err }

type stubPolicy struct{ err error }

func (s *stubPolicy) HealthCheck(ctx context.Context) error { return s.err }

func TestHealthz_AllChecksPass(t *testing.T) {
	h := New(&stubPinger{}, &stubPolicy{})
	rec := httptest.NewRecorder()

	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q, want ok status", rec.Body.String())
	}
}

func TestHealthz_DatabaseDownIs503(t *testing.T) {
	h := New(&stubPinger{err: errors.New("connection refused")}, &stubPolicy{})
	rec := httptest.NewRecorder()

	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("body = %q, want the failing check detail", rec.Body.String())
	}
}

func TestHealthz_PolicyDownIs503(t *testing.T) {
	h := New(&stubPinger{}, &stubPolicy{err: errors.New("compile failed")})
	rec := httptest.NewRecorder()

	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthz_NilDependenciesPass(t *testing.T) {
	h := New(nil, nil)
	rec := httptest.NewRecorder()

	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
