package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	accountdomain "gemwallet/backend/internal/account/domain"
	"gemwallet/backend/internal/account/service"
	"gemwallet/backend/internal/security"
	sessiondomain "gemwallet/backend/internal/session/domain"
	sessionservice "gemwallet/backend/internal/session/service"
)

type memAccountRepo struct {
	byEmail  map[string]*accountdomain.Account
	byHandle map[string]*accountdomain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{
		byEmail:  make(map[string]*accountdomain.Account),
		byHandle: make(map[string]*accountdomain.Account),
	}
}

func (m *memAccountRepo) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	return m.byEmail[email], nil
}

func (m *memAccountRepo) GetByHandle(ctx context.Context, handle string) (*accountdomain.Account, error) {
	return m.byHandle[handle], nil
}

func (m *memAccountRepo) Create(ctx context.Context, a *accountdomain.Account) error {
	m.byEmail[a.Email] = a
	m.byHandle[a.Handle] = a
	return nil
}

type stubIssuer struct {
	err error
}

func (s *stubIssuer) Issue(ctx context.Context, principalID, identity, token, origin string) (*sessiondomain.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sessiondomain.Session{PrincipalID: principalID, Identity: identity, Token: token, Active: true}, nil
}

const strongPassword = "Str0ng-Passw0rd!"

func newRouter(t *testing.T, issuer service.SessionIssuer) chi.Router {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider() error = %v", err)
	}
	svc := service.NewAccountService(newMemAccountRepo(), issuer, security.NewHasher(4), tokens, nil)
	r := chi.NewRouter()
	New(svc).Mount(r)
	return r
}

func do(t *testing.T, r chi.Router, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRegister_Created(t *testing.T) {
	r := newRouter(t, &stubIssuer{})

	rec := do(t, r, "/auth/register",
		`{"email":"alice@example.com","handle":"alice","password":"`+strongPassword+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"handle":"alice"`) {
		t.Errorf("body = %q, missing handle", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), strongPassword) {
		t.Error("response leaked the password")
	}
}

func TestRegister_DuplicateIs409(t *testing.T) {
	r := newRouter(t, &stubIssuer{})
	body := `{"email":"alice@example.com","handle":"alice","password":"` + strongPassword + `"}`

	if rec := do(t, r, "/auth/register", body); rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}
	if rec := do(t, r, "/auth/register", body); rec.Code != http.StatusConflict {
		t.Errorf("second register status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestRegister_BadBodyIs400(t *testing.T) {
	r := newRouter(t, &stubIssuer{})
	if rec := do(t, r, "/auth/register", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := do(t, r, "/auth/register", `{"email":"bad","handle":"alice","password":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLogin_ReturnsToken(t *testing.T) {
	r := newRouter(t, &stubIssuer{})
	if rec := do(t, r, "/auth/register",
		`{"email":"alice@example.com","handle":"alice","password":"`+strongPassword+`"}`); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}

	rec := do(t, r, "/auth/login", `{"handle":"alice","password":"`+strongPassword+`","origin":"mobile"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	for _, want := range []string{`"token":"`, `"expiresAt"`, `"identity":"alice"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("body = %q, missing %q", rec.Body.String(), want)
		}
	}
}

func TestLogin_BadCredentialsIs401(t *testing.T) {
	r := newRouter(t, &stubIssuer{})
	rec := do(t, r, "/auth/login", `{"handle":"nobody","password":"`+strongPassword+`"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLogin_ActiveSessionIs409(t *testing.T) {
	r := newRouter(t, &stubIssuer{err: sessionservice.ErrSessionConflict})
	if rec := do(t, r, "/auth/register",
		`{"email":"alice@example.com","handle":"alice","password":"`+strongPassword+`"}`); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}

	rec := do(t, r, "/auth/login", `{"handle":"alice","password":"`+strongPassword+`","origin":"mobile"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if !strings.Contains(rec.Body.String(), "already active") {
		t.Errorf("body = %q, want conflict explanation", rec.Body.String())
	}
}
