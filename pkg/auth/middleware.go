package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/elnormous/contenttype"

	"github.com/rhuss/authgate/pkg/api"
	"github.com/rhuss/authgate/pkg/transport"
)

// DefaultMaxPayloadBytes caps the body read for payload authentication.
const DefaultMaxPayloadBytes = 10 << 20

// Middleware creates HTTP middleware that authenticates requests on a route
// configured with route (as returned by SetupRoute).
//
// Per request it extends the request, resolves the policy, runs the
// fallback protocol and policy checks, verifies the payload when the policy
// asks for it, and lets the bound strategy sign the response. The auth
// State is available to handlers through StateFromContext.
func (d *Dispatcher) Middleware(route *Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = d.Extend(r)
			p := d.Resolve(route)

			st, err := d.Authenticate(r.Context(), r, p)
			r = r.WithContext(WithState(r.Context(), st))
			if err != nil {
				writeAuthError(w, r, err)
				return
			}
			// A failure tolerated in try mode may still carry response
			// headers, such as a cookie being cleared.
			if e, ok := AsError(st.Err); ok {
				addHeaders(w.Header(), e.Header)
			}

			if st.Authenticated && st.Policy.Payload != PayloadOff {
				if err := d.verifyBody(r, st); err != nil {
					writeAuthError(w, r, err)
					return
				}
			}

			sw := &signingWriter{ResponseWriter: w, d: d, r: r, st: st}
			next.ServeHTTP(sw, r)
			if !sw.wroteHeader {
				sw.WriteHeader(http.StatusOK)
			}
		})
	}
}

// verifyBody reads the full request body, authenticates it, and restores
// it for the handler.
func (d *Dispatcher) verifyBody(r *http.Request, st *State) error {
	var payload []byte
	if r.Body != nil {
		var err error
		payload, err = io.ReadAll(io.LimitReader(r.Body, DefaultMaxPayloadBytes+1))
		r.Body.Close()
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}
		if len(payload) > DefaultMaxPayloadBytes {
			return &Error{Status: http.StatusRequestEntityTooLarge, Message: "payload too large to authenticate"}
		}
		r.Body = io.NopCloser(bytes.NewReader(payload))
	}

	contentType := ""
	if mt, err := contenttype.GetMediaType(r); err == nil && mt.Type != "" {
		contentType = mt.Type + "/" + mt.Subtype
	}

	return d.AuthenticatePayload(r.Context(), st, payload, contentType)
}

// signingWriter signs the response just before its headers are written.
type signingWriter struct {
	http.ResponseWriter
	d  *Dispatcher
	r  *http.Request
	st *State

	wroteHeader bool
	failed      bool
}

func (w *signingWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	if err := w.d.SignResponse(w.r.Context(), w.r, w.st, status, w.Header()); err != nil {
		slog.Error("response signing failed", "strategy", w.st.Strategy, "error", err)
		w.failed = true
		writeAuthError(w.ResponseWriter, w.r, err)
		return
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *signingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.failed {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
func (w *signingWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.failed {
		return
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter.
func (w *signingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeAuthError maps a pipeline error to an HTTP response.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		slog.Debug("request cancelled during authentication", "path", r.URL.Path)
		return
	}

	e, ok := AsError(err)
	if !ok {
		slog.Error("authentication error", "path", r.URL.Path, "error", err)
		transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
		return
	}

	addHeaders(w.Header(), e.Header)
	if e.Status >= 300 && e.Status < 400 {
		w.WriteHeader(e.Status)
		return
	}

	var apiErr *api.APIError
	switch e.Status {
	case http.StatusUnauthorized:
		if v := e.WWWAuthenticate(); v != "" {
			w.Header().Set("WWW-Authenticate", v)
		}
		apiErr = api.NewUnauthorizedError(e.Error())
	case http.StatusForbidden:
		apiErr = api.NewForbiddenError(e.Reason, e.Error(), e.Values)
	case http.StatusInternalServerError:
		slog.Error("authentication pipeline failure", "path", r.URL.Path, "error", e)
		apiErr = api.NewServerError(e.Error())
	default:
		apiErr = api.NewInvalidRequestError("", e.Error())
	}

	slog.Warn("request rejected",
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"status", e.Status,
		"error", e.Error(),
	)
	transport.WriteErrorResponse(w, apiErr, e.Status)
}

func addHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
