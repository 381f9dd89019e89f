package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/authgate/pkg/api"
	"github.com/rhuss/authgate/pkg/auth"
	"github.com/rhuss/authgate/pkg/auth/cookie"
	"github.com/rhuss/authgate/pkg/config"
	"github.com/rhuss/authgate/pkg/transport"
)

// stateResponse is the body of the echo action.
type stateResponse struct {
	Authenticated bool          `json:"authenticated"`
	Strategy      string        `json:"strategy,omitempty"`
	Session       *auth.Session `json:"session,omitempty"`
	Error         string        `json:"error,omitempty"`
}

func actionHandler(action string) http.HandlerFunc {
	switch action {
	case config.ActionLogin:
		return handleLogin
	case config.ActionLogout:
		return handleLogout
	default:
		return handleEcho
	}
}

// handleEcho reports the auth state of the request.
func handleEcho(w http.ResponseWriter, r *http.Request) {
	st := auth.StateFromContext(r.Context())
	resp := stateResponse{}
	if st != nil {
		resp.Authenticated = st.Authenticated
		resp.Strategy = st.Strategy
		if st.Authenticated {
			resp.Session = st.Session
		}
		if st.Err != nil {
			resp.Error = st.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLogin stores the authenticated session in the encrypted cookie, so
// that later requests can use the cookie instead of the original
// credentials.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		transport.WriteAPIError(w, api.NewUnauthorizedError("login requires an authenticated request"))
		return
	}
	jar := cookie.JarFromContext(r.Context())
	if jar == nil {
		slog.Error("login route without an encrypted-cookie strategy", "path", r.URL.Path)
		transport.WriteAPIError(w, api.NewServerError("no session cookie configured"))
		return
	}
	if err := jar.Set(w, session); err != nil {
		slog.Error("setting session cookie", "error", err)
		transport.WriteAPIError(w, api.NewServerError("setting session cookie failed"))
		return
	}
	handleEcho(w, r)
}

// handleLogout clears the session cookie.
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if jar := cookie.JarFromContext(r.Context()); jar != nil {
		jar.Clear(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth reports ok when every backend answers within two seconds.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("health check failed", "backend", name, "error", err)
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"healthy": healthy, "backends": status})
}

func apiNotFound(r *http.Request) *api.APIError {
	return api.NewNotFoundError("no route for " + r.Method + " " + r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}
