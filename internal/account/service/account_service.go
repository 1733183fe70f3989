package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	accountdomain "gemwallet/backend/internal/account/domain"
	"gemwallet/backend/internal/audit"
	"gemwallet/backend/internal/security"
	sessiondomain "gemwallet/backend/internal/session/domain"
)

// Sentinel errors for the account service; the handler maps them to HTTP codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrHandleTaken            = errors.New("handle already taken")
	ErrInvalidCredentials     = errors.New("invalid credentials")
)

// LoginResult holds the outcome of a successful login.
type LoginResult struct {
	Token       string
	ExpiresAt   time.Time
	PrincipalID string
	Identity    string
	Session     *sessiondomain.Session
}

// AccountRepo is the minimal account repository needed by the account service.
type AccountRepo interface {
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	GetByHandle(ctx context.Context, handle string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
}

// SessionIssuer creates the server-side session for a fresh login. Satisfied
// by the session lifecycle manager.
type SessionIssuer interface {
	Issue(ctx context.Context, principalID, identity, token, origin string) (*sessiondomain.Session, error)
}

// AccountService implements register and password login.
type AccountService struct {
	repo     AccountRepo
	sessions SessionIssuer
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	audit    audit.AuditLogger
}

// NewAccountService returns an AccountService with the given dependencies.
// auditLogger may be nil.
func NewAccountService(repo AccountRepo, sessions SessionIssuer, hasher *security.Hasher, tokens *security.TokenProvider, auditLogger audit.AuditLogger) *AccountService {
	return &AccountService{
		repo:     repo,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		audit:    auditLogger,
	}
}

// Register creates an account with the given email, handle, and password.
func (s *AccountService) Register(ctx context.Context, email, handle, password string) (*accountdomain.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	handle = strings.TrimSpace(strings.ToLower(handle))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateHandle(handle); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	existing, err = s.repo.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrHandleTaken
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	account := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Handle:       handle,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logAudit(ctx, account.ID, "account.register", "account", handle)
	return account, nil
}

// Login verifies the credentials, mints a bearer token, and opens the
// server-side session. origin labels the calling surface and flows into the
// token claims; session exclusivity errors pass through unchanged.
func (s *AccountService) Login(ctx context.Context, handle, password, origin string) (*LoginResult, error) {
	handle = strings.TrimSpace(strings.ToLower(handle))
	if handle == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	account, err := s.repo.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if account == nil {
		// Allow login by email as well.
		account, err = s.repo.GetByEmail(ctx, handle)
		if err != nil {
			return nil, err
		}
	}
	if account == nil || account.PasswordHash == "" {
		s.logAudit(ctx, "", "login_failure", "account", handle)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(account.PasswordHash, []byte(password)); err != nil {
		s.logAudit(ctx, account.ID, "login_failure", "account", handle)
		return nil, ErrInvalidCredentials
	}

	token, _, expiresAt, err := s.tokens.IssueSession(account.ID, account.Handle, origin)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Issue(ctx, account.ID, account.Handle, token, origin)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, account.ID, "login_success", "account", account.Handle)
	return &LoginResult{
		Token:       token,
		ExpiresAt:   expiresAt,
		PrincipalID: account.ID,
		Identity:    account.Handle,
		Session:     sess,
	}, nil
}

func (s *AccountService) logAudit(ctx context.Context, principalID, action, resource, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, principalID, action, resource, metadata)
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}

var handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,31}$`)

func validateHandle(handle string) error {
	if handle == "" {
		return errors.New("handle is required")
	}
	if !handlePattern.MatchString(handle) {
		return errors.New("handle must be 3-32 characters: lowercase letters, digits, - or _")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		case r < '0' || (r > '9' && r < 'A') || (r > 'Z' && r < 'a') || r > 'z':
			hasSymbol = true
		}
	}
	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSymbol {
		return errors.New("password must contain at least one symbol")
	}
	return nil
}
