package auth

import (
	"context"
	"net/http"
	"slices"
)

// Strategy verifies the credentials of one authentication scheme.
//
// Authenticate must return exactly one of a session or an error. A strategy
// that finds none of its credential material on the request returns the
// error built by Missing so that the next strategy in the route's list can
// be consulted.
type Strategy interface {
	Authenticate(ctx context.Context, r *http.Request) (*Session, error)
}

// PayloadAuthenticator is implemented by strategies that can verify the raw
// request body against the signed material of a session.
type PayloadAuthenticator interface {
	AuthenticatePayload(ctx context.Context, payload []byte, session *Session, contentType string) error
}

// ResponseSigner is implemented by strategies that decorate outgoing
// responses with a server signature. It is called before the response
// headers are written.
type ResponseSigner interface {
	SignResponse(ctx context.Context, r *http.Request, session *Session, header http.Header) error
}

// RequestExtender is implemented by strategies that attach values to every
// request before authentication begins.
type RequestExtender interface {
	ExtendRequest(r *http.Request) *http.Request
}

// Capabilities records which optional interfaces a registered strategy
// implements. It is computed once at registration.
type Capabilities struct {
	Payload  bool
	Response bool
	Extend   bool
}

func capabilitiesOf(s Strategy) Capabilities {
	_, payload := s.(PayloadAuthenticator)
	_, response := s.(ResponseSigner)
	_, extend := s.(RequestExtender)
	return Capabilities{Payload: payload, Response: response, Extend: extend}
}

// Artifact keys shared by signing strategies.
const (
	// ArtifactPayloadHash holds the payload hash the client included in its
	// request signature, if any.
	ArtifactPayloadHash = "hash"
)

// Session is the authenticated principal context produced by a strategy.
// It lives for the duration of one request and is never persisted.
type Session struct {
	// User is the user principal id. Empty for application-only sessions.
	User string `json:"user,omitempty"`

	// App is the application principal id.
	App string `json:"app,omitempty"`

	// Scope lists the authorization tags granted to the session.
	Scope []string `json:"scope,omitempty"`

	Ext Ext `json:"ext,omitempty"`

	// Artifacts carries protocol-specific signed material (MAC, nonce,
	// payload hash) needed by the later payload and response hooks.
	Artifacts map[string]string `json:"-"`
}

// Ext holds extension attributes of a session.
type Ext struct {
	// TOS is the accepted terms-of-service version, nil when unknown.
	TOS *int `json:"tos,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// HasScope reports whether the session was granted scope.
func (s *Session) HasScope(scope string) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.Scope, scope)
}

// Artifact returns the named artifact or the empty string.
func (s *Session) Artifact(key string) string {
	if s == nil || s.Artifacts == nil {
		return ""
	}
	return s.Artifacts[key]
}

// Principal returns the user id if set, otherwise the app id.
func (s *Session) Principal() string {
	if s == nil {
		return ""
	}
	if s.User != "" {
		return s.User
	}
	return s.App
}

// IntPtr returns a pointer to v. It is a convenience for building sessions
// with a TOS value.
func IntPtr(v int) *int {
	return &v
}
