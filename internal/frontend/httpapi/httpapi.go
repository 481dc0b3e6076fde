// Package httpapi serves the HTTP surface of the server: magic-link login,
// session logout, the websocket endpoint and a health check.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/auth"
	"github.com/cory-johannsen/textcamp/internal/game/world"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4096

// Authenticator is the login surface of the world.
type Authenticator interface {
	StartAuth(ctx context.Context, email string) error
	AuthenticateOTP(ctx context.Context, otp string) (string, error)
}

// SessionEnder revokes session tokens.
type SessionEnder interface {
	EndSession(ctx context.Context, token string) error
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Options configures the handler.
type Options struct {
	Logger   *zap.Logger
	Auth     Authenticator
	Sessions SessionEnder
	// Websocket serves GET /ws/.
	Websocket http.Handler
	// Health is consulted by GET /healthz. Nil means always healthy.
	Health HealthFunc
}

type api struct {
	logger   *zap.Logger
	auth     Authenticator
	sessions SessionEnder
	health   HealthFunc
}

// NewHandler builds the routing table.
//
// Precondition: opts.Logger, opts.Auth, opts.Sessions and opts.Websocket must be non-nil.
func NewHandler(opts Options) http.Handler {
	a := &api{
		logger:   opts.Logger,
		auth:     opts.Auth,
		sessions: opts.Sessions,
		health:   opts.Health,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth", a.startAuth)
	mux.HandleFunc("GET /otp", a.redeemOTP)
	mux.HandleFunc("POST /logout", a.logout)
	mux.HandleFunc("GET /healthz", a.healthz)
	mux.Handle("GET /ws/", opts.Websocket)
	return a.logRequests(mux)
}

type emailRequest struct {
	Email string `json:"email"`
}

type sessionBody struct {
	Session string `json:"session"`
}

type statusBody struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (a *api) startAuth(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, statusBody{Status: "error", Error: "malformed request"})
		return
	}
	err := a.auth.StartAuth(r.Context(), req.Email)
	switch {
	case err == nil:
		a.writeJSON(w, http.StatusAccepted, statusBody{Status: "sent"})
	case errors.Is(err, auth.ErrInvalidEmail):
		a.writeJSON(w, http.StatusBadRequest, statusBody{Status: "error", Error: "invalid email"})
	default:
		a.logger.Error("starting auth", zap.Error(err))
		a.writeJSON(w, http.StatusInternalServerError, statusBody{Status: "error", Error: "something went wrong"})
	}
}

func (a *api) redeemOTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		a.writeJSON(w, http.StatusBadRequest, statusBody{Status: "error", Error: "missing token"})
		return
	}
	session, err := a.auth.AuthenticateOTP(r.Context(), token)
	switch {
	case err == nil:
		a.writeJSON(w, http.StatusOK, sessionBody{Session: session})
	case errors.Is(err, world.ErrUnauthenticated):
		a.writeJSON(w, http.StatusUnauthorized, statusBody{Status: "error", Error: "invalid or expired link"})
	default:
		a.logger.Error("redeeming otp", zap.Error(err))
		a.writeJSON(w, http.StatusInternalServerError, statusBody{Status: "error", Error: "something went wrong"})
	}
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	var req sessionBody
	if err := decode(w, r, &req); err != nil || req.Session == "" {
		a.writeJSON(w, http.StatusBadRequest, statusBody{Status: "error", Error: "malformed request"})
		return
	}
	if err := a.sessions.EndSession(r.Context(), req.Session); err != nil {
		a.logger.Error("ending session", zap.Error(err))
		a.writeJSON(w, http.StatusInternalServerError, statusBody{Status: "error", Error: "something went wrong"})
		return
	}
	a.writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			a.logger.Warn("health check failed", zap.Error(err))
			a.writeJSON(w, http.StatusServiceUnavailable, statusBody{Status: "unavailable"})
			return
		}
	}
	a.writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("writing response", zap.Error(err))
	}
}

// logRequests logs every request except websocket sessions, which log
// their own lifecycle.
func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path == "/ws/" {
			return
		}
		a.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
