package auth

import (
	"net/http"
)

// Phase is the state of the fallback protocol for one request.
type Phase int

const (
	// Trying means strategy Step.Index is about to be consulted.
	Trying Phase = iota
	// Authenticated means strategy Step.Index produced Step.Session.
	// Policy enforcement has not run yet.
	Authenticated
	// Unauthenticated means the chain ended without a session and the
	// request proceeds anonymously.
	Unauthenticated
	// Rejected means the chain ended with Step.Err.
	Rejected
)

func (p Phase) String() string {
	switch p {
	case Trying:
		return "trying"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further strategy will be consulted.
func (p Phase) Terminal() bool {
	return p != Trying
}

// Step is a snapshot of the fallback protocol.
type Step struct {
	Phase Phase

	// Index is the strategy being tried, or the one that produced the
	// session once Authenticated.
	Index int

	// Challenges accumulates the challenges of strategies that reported
	// missing credentials, in strategy order.
	Challenges []string

	Session *Session

	// Err is the rejection cause, or the tolerated failure under ModeTry.
	Err error
}

// Outcome is what one strategy call returned.
type Outcome struct {
	Session *Session
	Err     error
}

// Start returns the initial step for a policy.
func Start() Step {
	return Step{Phase: Trying}
}

// Transition advances the fallback protocol by one strategy outcome. It
// performs no I/O; Dispatcher.Authenticate drives it with real strategy
// calls.
func Transition(p *Policy, s Step, out Outcome) Step {
	if s.Phase.Terminal() {
		return s
	}

	switch {
	case out.Session == nil && out.Err == nil:
		return Step{
			Phase:      Rejected,
			Index:      s.Index,
			Challenges: s.Challenges,
			Err:        Internal("strategy " + p.Strategies[s.Index] + " returned neither a session nor an error"),
		}
	case out.Session != nil && out.Err != nil:
		return Step{
			Phase:      Rejected,
			Index:      s.Index,
			Challenges: s.Challenges,
			Err:        Internal("strategy " + p.Strategies[s.Index] + " returned both a session and an error"),
		}
	case out.Session != nil:
		return Step{
			Phase:      Authenticated,
			Index:      s.Index,
			Challenges: s.Challenges,
			Session:    out.Session,
		}
	}

	if missing, ok := isMissing(out.Err); ok {
		challenges := append(append([]string(nil), s.Challenges...), missing.Challenges...)
		next := s.Index + 1
		if next < len(p.Strategies) {
			return Step{Phase: Trying, Index: next, Challenges: challenges}
		}
		if p.Mode == ModeOptional || p.Mode == ModeTry {
			return Step{Phase: Unauthenticated, Index: s.Index, Challenges: challenges}
		}
		return Step{
			Phase:      Rejected,
			Index:      s.Index,
			Challenges: challenges,
			Err: &Error{
				Status:     http.StatusUnauthorized,
				Message:    "Missing authentication",
				Challenges: challenges,
			},
		}
	}

	if p.Mode == ModeTry {
		return Step{Phase: Unauthenticated, Index: s.Index, Challenges: s.Challenges, Err: out.Err}
	}
	return Step{Phase: Rejected, Index: s.Index, Challenges: s.Challenges, Err: out.Err}
}
