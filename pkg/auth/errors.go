package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Configuration and policy validation errors. They are returned wrapped with
// the offending name or value; match them with errors.Is.
var (
	ErrEmptyName          = errors.New("strategy name is required")
	ErrDuplicateStrategy  = errors.New("strategy already registered")
	ErrUnknownScheme      = errors.New("unknown authentication scheme")
	ErrMissingImpl        = errors.New("custom scheme requires an implementation")
	ErrMalformedOptions   = errors.New("malformed strategy options")
	ErrDefaultConflict    = errors.New("a default strategy is already set")
	ErrBatchShape         = errors.New("strategy batch mixes a single default strategy with named strategies")
	ErrInvalidPolicy      = errors.New("invalid route auth policy")
	ErrStrategyConflict   = errors.New("route auth policy sets both strategy and strategies")
	ErrUnknownStrategy    = errors.New("unknown authentication strategy")
	ErrPayloadUnsupported = errors.New("payload authentication required but not supported by every strategy")
)

// Reasons reported by policy violations.
const (
	ReasonInsufficientScope = "insufficient_scope"
	ReasonInsufficientTOS   = "insufficient_tos"
	ReasonUserEndpoint      = "app_session_on_user_endpoint"
	ReasonAppEndpoint       = "user_session_on_app_endpoint"
)

// Error is an authentication or authorization failure delivered to the
// caller. Status is one of 401, 403, 500, or the status of a custom
// response (for example a redirect).
type Error struct {
	Status  int
	Reason  string
	Message string

	// Challenges are WWW-Authenticate values, in strategy order.
	Challenges []string

	// Values carries the data relevant to a policy violation.
	Values map[string]any

	// Header is written with custom responses (Location for redirects).
	Header http.Header

	missing bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// IsMissing reports whether the error is a missing-credentials challenge:
// the strategy found none of its credential material on the request.
func (e *Error) IsMissing() bool {
	return e.missing && e.Status == http.StatusUnauthorized
}

// WWWAuthenticate returns the value for the WWW-Authenticate header.
func (e *Error) WWWAuthenticate() string {
	return strings.Join(e.Challenges, ", ")
}

// Missing returns a missing-credentials challenge advertising challenge
// (typically the scheme name, optionally with attributes).
func Missing(challenge string) *Error {
	e := &Error{Status: http.StatusUnauthorized, missing: true}
	if challenge != "" {
		e.Challenges = []string{challenge}
	}
	return e
}

// Unauthorized returns a hard authentication failure: credentials were
// present but invalid.
func Unauthorized(message, challenge string) *Error {
	e := &Error{Status: http.StatusUnauthorized, Message: message}
	if challenge != "" {
		e.Challenges = []string{challenge}
	}
	return e
}

// Forbidden returns a policy violation.
func Forbidden(reason, message string, values map[string]any) *Error {
	return &Error{Status: http.StatusForbidden, Reason: reason, Message: message, Values: values}
}

// Internal returns a server-side failure, such as a strategy breaking its
// contract.
func Internal(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message}
}

// Redirect returns a failure that short-circuits the chain with a redirect
// response instead of an error body.
func Redirect(location string) *Error {
	h := make(http.Header)
	h.Set("Location", location)
	return &Error{Status: http.StatusFound, Message: "redirect", Header: h}
}

// AsError extracts the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// isMissing classifies err as a missing-credentials challenge.
func isMissing(err error) (*Error, bool) {
	e, ok := AsError(err)
	if !ok || !e.IsMissing() {
		return nil, false
	}
	return e, true
}

// ErrorStatus returns the HTTP status for err, defaulting to 500.
func ErrorStatus(err error) int {
	if e, ok := AsError(err); ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

func policyError(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
