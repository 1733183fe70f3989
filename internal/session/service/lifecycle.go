// Package service owns the session lifecycle rules: issuance with the
// single-active-session rule, validation against both expiry criteria,
// heartbeats, retirement, and the bulk expiry sweep. The repository is dumb
// storage; every rule lives here.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gemwallet/backend/internal/audit"
	"gemwallet/backend/internal/session/domain"
	"gemwallet/backend/internal/session/repository"
	"gemwallet/backend/internal/telemetry"
)

// Sentinel errors for the session lifecycle; handlers map them to HTTP codes.
var (
	ErrSessionConflict = errors.New("another session is already active for this account")
	// ErrDuplicateToken means a freshly minted token collided with a stored
	// one. Tokens carry enough entropy that this implies a bug; fail loudly.
	ErrDuplicateToken = errors.New("session token collision")
	ErrInvalidSession = errors.New("invalid or expired session")
)

// Retirement reasons, recorded as the metric attribute and audit metadata.
// The reason is never surfaced to clients (uniform auth failure only).
const (
	ReasonLogout    = "logout"
	ReasonIdle      = "idle"
	ReasonAbsolute  = "absolute"
	ReasonHeartbeat = "heartbeat"
)

// OriginPolicy decides whether an origin label is exempt from persistence
// and the single-active-session rule.
type OriginPolicy interface {
	Exempt(ctx context.Context, origin string) (bool, error)
}

// Timings holds the lifecycle timing constants.
type Timings struct {
	// TTL is the absolute session lifetime from issuance.
	TTL time.Duration
	// HeartbeatGrace is how long a session may go without a heartbeat.
	HeartbeatGrace time.Duration
	// SafetyBuffer is the minimum session age before the heartbeat-gap sweep
	// may retire it, so a fresh session is not swept before its first
	// heartbeat had a fair chance to arrive.
	SafetyBuffer time.Duration
}

func (t Timings) withDefaults() Timings {
	if t.TTL <= 0 {
		t.TTL = time.Hour
	}
	if t.HeartbeatGrace <= 0 {
		t.HeartbeatGrace = 2 * time.Minute
	}
	if t.SafetyBuffer <= 0 {
		t.SafetyBuffer = 3 * time.Minute
	}
	return t
}

// Manager implements the session lifecycle over a session repository.
type Manager struct {
	repo    repository.Repository
	policy  OriginPolicy
	audit   audit.AuditLogger
	emitter telemetry.EventEmitter
	timings Timings

	now func() time.Time

	issuedCounter  metric.Int64Counter
	retiredCounter metric.Int64Counter
	sweepCounter   metric.Int64Counter
}

// NewManager returns a Manager with the given dependencies. policy, auditLogger,
// and emitter may be nil; the corresponding behavior is skipped.
func NewManager(repo repository.Repository, policy OriginPolicy, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter, timings Timings) *Manager {
	meter := otel.Meter("gemwallet/backend/internal/session")
	issued, err := meter.Int64Counter("sessions_issued_total",
		metric.WithDescription("Sessions issued, by origin exemption."))
	if err != nil {
		log.Printf("session: register issued counter: %v", err)
	}
	retired, err := meter.Int64Counter("sessions_retired_total",
		metric.WithDescription("Sessions retired, by reason."))
	if err != nil {
		log.Printf("session: register retired counter: %v", err)
	}
	sweeps, err := meter.Int64Counter("session_sweep_runs_total",
		metric.WithDescription("Completed expiry sweep passes."))
	if err != nil {
		log.Printf("session: register sweep counter: %v", err)
	}
	return &Manager{
		repo:           repo,
		policy:         policy,
		audit:          auditLogger,
		emitter:        emitter,
		timings:        timings.withDefaults(),
		now:            func() time.Time { return time.Now().UTC() },
		issuedCounter:  issued,
		retiredCounter: retired,
		sweepCounter:   sweeps,
	}
}

// Timings returns the configured lifecycle timings.
func (m *Manager) Timings() Timings { return m.timings }

// Issue creates a session for an authenticated principal. token must be a
// freshly minted bearer credential. Fails with ErrSessionConflict when the
// identity or principal already has an active session, unless the origin is
// exempt, in which case the session is returned without being persisted and
// without consulting the exclusivity rule.
func (m *Manager) Issue(ctx context.Context, principalID, identity, token, origin string) (*domain.Session, error) {
	now := m.now()
	sess := &domain.Session{
		ID:             uuid.New().String(),
		PrincipalID:    principalID,
		Identity:       identity,
		Token:          token,
		Origin:         origin,
		Active:         true,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(m.timings.TTL),
	}

	if exempt, err := m.originExempt(ctx, origin); err != nil {
		return nil, err
	} else if exempt {
		m.count(ctx, m.issuedCounter, attribute.Bool("exempt", true))
		return sess, nil
	}

	// Pre-check for a friendly conflict error; the partial unique index is
	// what actually guarantees exclusivity under concurrent logins.
	existing, err := m.repo.FindActiveByIdentity(ctx, identity, principalID, now)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		m.logAudit(ctx, principalID, "session.conflict", "session", identity)
		return nil, ErrSessionConflict
	}

	if err := m.repo.Create(ctx, sess); err != nil {
		switch {
		case errors.Is(err, repository.ErrPrincipalActive):
			m.logAudit(ctx, principalID, "session.conflict", "session", identity)
			return nil, ErrSessionConflict
		case errors.Is(err, repository.ErrDuplicateToken):
			return nil, ErrDuplicateToken
		default:
			return nil, err
		}
	}

	// Self-heal against eventually-consistent backends: if the row came back
	// inactive, force it active and record the anomaly. Not a normal path.
	persisted, err := m.repo.GetByToken(ctx, token)
	if err == nil && persisted != nil && !persisted.Active {
		log.Printf("session: issued session %s persisted inactive; reactivating", sess.ID)
		if err := m.repo.Reactivate(ctx, token); err != nil {
			log.Printf("session: reactivate %s: %v", sess.ID, err)
		}
	}

	m.count(ctx, m.issuedCounter, attribute.Bool("exempt", false))
	m.logAudit(ctx, principalID, "session.issue", "session", sess.ID)
	m.emit(ctx, principalID, sess.ID, "session.issued", origin)
	return sess, nil
}

// Validate returns the session for token when it is active and inside both
// expiry criteria. It retires sessions it finds expired, fails closed on
// storage errors, and never updates the activity timestamp; callers that
// intend to keep using the session must Touch separately.
func (m *Manager) Validate(ctx context.Context, token string) (*domain.Session, error) {
	sess, err := m.repo.GetByToken(ctx, token)
	if err != nil {
		log.Printf("session: validate lookup failed: %v", err)
		return nil, ErrInvalidSession
	}
	if sess == nil || !sess.Active {
		return nil, ErrInvalidSession
	}

	now := m.now()
	if sess.Expired(now) {
		m.retire(ctx, sess, ReasonAbsolute)
		return nil, ErrInvalidSession
	}
	if sess.HeartbeatStale(now, m.timings.HeartbeatGrace) {
		m.retire(ctx, sess, ReasonHeartbeat)
		return nil, ErrInvalidSession
	}
	return sess, nil
}

// Touch records a heartbeat for token. Touching a retired or unknown token is
// a silent no-op, and storage failures are swallowed: a missed heartbeat must
// never fail the caller's request.
func (m *Manager) Touch(ctx context.Context, token string) {
	if err := m.repo.UpdateActivity(ctx, token, m.now()); err != nil {
		log.Printf("session: touch failed: %v", err)
	}
}

// Retire explicitly retires the session for token. Idempotent; retiring an
// unknown or already-retired token succeeds without effect.
func (m *Manager) Retire(ctx context.Context, token, reason string) error {
	sess, err := m.repo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Active {
		return nil
	}
	m.retire(ctx, sess, reason)
	return nil
}

// RetireAllForPrincipal retires every active session for the principal
// (logout-everywhere).
func (m *Manager) RetireAllForPrincipal(ctx context.Context, principalID string) error {
	if err := m.repo.RetireAllForPrincipal(ctx, principalID); err != nil {
		return err
	}
	m.count(ctx, m.retiredCounter, attribute.String("reason", ReasonLogout))
	m.logAudit(ctx, principalID, "session.retire", "session", "all")
	return nil
}

// SweepExpired runs one expiry pass: first the absolute-TTL criterion, then
// the heartbeat-gap criterion over the surviving rows. Returns per-criterion
// counts for observability.
func (m *Manager) SweepExpired(ctx context.Context) (repository.SweepResult, error) {
	now := m.now()
	result, err := m.repo.SweepExpired(ctx, now, m.timings.HeartbeatGrace, m.timings.SafetyBuffer)
	if err != nil {
		return result, err
	}
	m.count(ctx, m.sweepCounter)
	if result.AbsoluteExpired > 0 {
		m.count(ctx, m.retiredCounter, attribute.String("reason", ReasonAbsolute))
	}
	if result.HeartbeatGap > 0 {
		m.count(ctx, m.retiredCounter, attribute.String("reason", ReasonHeartbeat))
	}
	if result.AbsoluteExpired > 0 || result.HeartbeatGap > 0 {
		m.emit(ctx, "", "", "session.sweep", "sweeper")
	}
	return result, nil
}

func (m *Manager) originExempt(ctx context.Context, origin string) (bool, error) {
	if m.policy == nil || origin == "" {
		return false, nil
	}
	return m.policy.Exempt(ctx, origin)
}

func (m *Manager) retire(ctx context.Context, sess *domain.Session, reason string) {
	if err := m.repo.Retire(ctx, sess.Token); err != nil {
		log.Printf("session: retire %s: %v", sess.ID, err)
		return
	}
	m.count(ctx, m.retiredCounter, attribute.String("reason", reason))
	m.logAudit(ctx, sess.PrincipalID, "session.retire", "session", reason)
	m.emit(ctx, sess.PrincipalID, sess.ID, "session.retired", reason)
}

func (m *Manager) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Manager) logAudit(ctx context.Context, principalID, action, resource, metadata string) {
	if m.audit == nil {
		return
	}
	m.audit.LogEvent(ctx, principalID, action, resource, metadata)
}

func (m *Manager) emit(ctx context.Context, principalID, sessionID, eventType, source string) {
	if m.emitter == nil {
		return
	}
	telemetry.EmitAsync(m.emitter, ctx, &telemetry.Event{
		PrincipalID: principalID,
		SessionID:   sessionID,
		EventType:   eventType,
		Source:      source,
		CreatedAt:   m.now(),
	})
}
