package auth

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
)

// fakeStrategy returns a fixed outcome and counts its calls.
type fakeStrategy struct {
	session *Session
	err     error
	calls   atomic.Int32
}

func (f *fakeStrategy) Authenticate(_ context.Context, _ *http.Request) (*Session, error) {
	f.calls.Add(1)
	return f.session, f.err
}

func missing(challenge string) *fakeStrategy {
	return &fakeStrategy{err: Missing(challenge)}
}

func failing(msg string) *fakeStrategy {
	return &fakeStrategy{err: Unauthorized(msg, "")}
}

func succeeding(s *Session) *fakeStrategy {
	return &fakeStrategy{session: s}
}

// signingStrategy supports every optional capability.
type signingStrategy struct {
	fakeStrategy
	payloadErr  error
	payloads    [][]byte
	contentType string
	signed      atomic.Int32
}

func (s *signingStrategy) AuthenticatePayload(_ context.Context, payload []byte, _ *Session, contentType string) error {
	s.payloads = append(s.payloads, payload)
	s.contentType = contentType
	return s.payloadErr
}

func (s *signingStrategy) SignResponse(_ context.Context, _ *http.Request, _ *Session, h http.Header) error {
	s.signed.Add(1)
	h.Set("X-Signed", "yes")
	return nil
}

// extendingStrategy tags every request.
type extendingStrategy struct {
	fakeStrategy
	tag string
}

type tagKey struct{}

func (s *extendingStrategy) ExtendRequest(r *http.Request) *http.Request {
	tags, _ := r.Context().Value(tagKey{}).([]string)
	return r.WithContext(context.WithValue(r.Context(), tagKey{}, append(tags, s.tag)))
}

func newTestRegistry(t *testing.T, strategies map[string]Strategy, order ...string) *Registry {
	t.Helper()
	reg := NewRegistry(nil)
	for _, name := range order {
		if err := reg.Add(name, StrategyOptions{Implementation: strategies[name]}); err != nil {
			t.Fatalf("Add(%q) failed: %v", name, err)
		}
	}
	return reg
}

func asError(t *testing.T, err error) *Error {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	return e
}
