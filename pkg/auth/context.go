package auth

import "context"

// State is the per-request authentication state. It is created when the
// pipeline starts and is discarded with the request.
type State struct {
	// Policy is the resolved route policy, nil when authentication is
	// disabled for the route.
	Policy *Policy

	Authenticated bool
	Session       *Session

	// Strategy is the name of the strategy that produced Session. It is
	// empty for sessions injected upstream.
	Strategy string

	// Challenges are the challenges of the strategies that found no
	// credentials, in strategy order.
	Challenges []string

	// Err is the strategy failure tolerated under ModeTry.
	Err error

	bound Strategy
	caps  Capabilities
}

type stateKey struct{}

type injectedKey struct{}

// WithState stores the auth state in the context.
func WithState(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// StateFromContext retrieves the auth state. Returns nil if the request did
// not go through the dispatcher.
func StateFromContext(ctx context.Context) *State {
	if v, ok := ctx.Value(stateKey{}).(*State); ok {
		return v
	}
	return nil
}

// SessionFromContext returns the authenticated session, or nil.
func SessionFromContext(ctx context.Context) *Session {
	st := StateFromContext(ctx)
	if st == nil || !st.Authenticated {
		return nil
	}
	return st.Session
}

// WithSession injects a trusted session. The dispatcher accepts it without
// consulting any strategy; policy checks still apply. Use it only from
// trusted upstream code such as tests or internal request forwarding.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, injectedKey{}, s)
}

func injectedSession(ctx context.Context) *Session {
	if v, ok := ctx.Value(injectedKey{}).(*Session); ok {
		return v
	}
	return nil
}
