// Package handler exposes account registration and login over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gemwallet/backend/internal/account/service"
	sessionservice "gemwallet/backend/internal/session/service"
)

// Handler serves the account endpoints.
type Handler struct {
	accounts *service.AccountService
}

// New returns an account Handler backed by the given service.
func New(accounts *service.AccountService) *Handler {
	return &Handler{accounts: accounts}
}

// Mount registers the public account routes.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
}

type registerRequest struct {
	Email    string `json:"email"`
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Handle string `json:"handle"`
}

// Register creates an account. 201 on success, 409 on duplicate email or
// handle, 400 on validation failures.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := h.accounts.Register(r.Context(), req.Email, req.Handle, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyRegistered),
			errors.Is(err, service.ErrHandleTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		ID:     account.ID,
		Email:  account.Email,
		Handle: account.Handle,
	})
}

type loginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
	Origin   string `json:"origin"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	PrincipalID string    `json:"principalId"`
	Identity    string    `json:"identity"`
}

// Login verifies credentials and opens a session. 401 on bad credentials,
// 409 when another session is already active for the account.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.accounts.Login(r.Context(), req.Handle, req.Password, req.Origin)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, sessionservice.ErrSessionConflict):
			writeError(w, http.StatusConflict, sessionservice.ErrSessionConflict.Error())
		default:
			writeError(w, http.StatusServiceUnavailable, "login could not be completed")
		}
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:       result.Token,
		ExpiresAt:   result.ExpiresAt,
		PrincipalID: result.PrincipalID,
		Identity:    result.Identity,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
