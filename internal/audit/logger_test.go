package audit

import (
	"context"
	"errors"
	"testing"

	"gemwallet/backend/internal/audit/domain"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	ipExtractor := func(ctx context.Context) string {
		return "192.168.1.1"
	}
	logger := NewLogger(repo, ipExtractor)
	ctx := context.Background()

	logger.LogEvent(ctx, "principal-1", "session.issue", "session", "metadata")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.PrincipalID != "principal-1" {
		t.Errorf("principal_id = %q, want %q", entry.PrincipalID, "principal-1")
	}
	if entry.Action != "session.issue" {
		t.Errorf("action = %q, want %q", entry.Action, "session.issue")
	}
	if entry.Resource != "session" {
		t.Errorf("resource = %q, want %q", entry.Resource, "session")
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if entry.Metadata != "metadata" {
		t.Errorf("metadata = %q, want %q", entry.Metadata, "metadata")
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt should be set")
	}
}

func TestLogger_LogEvent_NilIPExtractor(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil)
	ctx := context.Background()

	logger.LogEvent(ctx, "principal-1", "action", "resource", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want %q", repo.entries[0].IP, "unknown")
	}
}

func TestLogger_LogEvent_SentinelPrincipalID(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil)
	ctx := context.Background()

	logger.LogEvent(ctx, "", "login_failure", "account", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].PrincipalID != SentinelPrincipalID {
		t.Errorf("principal_id = %q, want %q", repo.entries[0].PrincipalID, SentinelPrincipalID)
	}
}

func TestLogger_LogEvent_RepositoryError(t *testing.T) {
	repo := &mockAuditRepo{
		createErr: errors.New("database error"),
	}
	logger := NewLogger(repo, nil)
	ctx := context.Background()

	// Should not panic or return error - best-effort logging
	logger.LogEvent(ctx, "principal-1", "action", "resource", "")
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	logger := NewLogger(nil, nil)
	ctx := context.Background()

	// Should not panic - no-op when repo is nil
	logger.LogEvent(ctx, "principal-1", "action", "resource", "")
}
