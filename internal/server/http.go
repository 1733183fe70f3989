// Package server wires the HTTP surface: router, middleware chain, and the
// configured http.Server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	accounthandler "gemwallet/backend/internal/account/handler"
	healthhandler "gemwallet/backend/internal/health/handler"
	"gemwallet/backend/internal/server/middleware"
	sessionhandler "gemwallet/backend/internal/session/handler"
)

// Deps holds everything the router mounts.
type Deps struct {
	Accounts *accounthandler.Handler
	Sessions *sessionhandler.Handler
	Health   *healthhandler.Handler

	Tokens       middleware.TokenValidator
	SessionCheck middleware.SessionChecker
	OriginPolicy middleware.OriginPolicy
}

// NewRouter builds the route tree. Registration, login, and the raw-token
// session endpoints are public; everything else sits behind the auth gate.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.ClientIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Healthz)
	}

	r.Route("/v1", func(r chi.Router) {
		if deps.Accounts != nil {
			deps.Accounts.Mount(r)
		}
		if deps.Sessions != nil {
			deps.Sessions.MountPublic(r)
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(deps.Tokens, deps.SessionCheck, deps.OriginPolicy))
				deps.Sessions.MountProtected(r)
			})
		}
	})

	return r
}

// New returns an http.Server for handler with OTel instrumentation and
// conservative timeouts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(handler, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
