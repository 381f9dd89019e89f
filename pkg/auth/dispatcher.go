package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhuss/authgate/pkg/debug"
	"github.com/rhuss/authgate/pkg/observability"
)

// TracerName is the OpenTelemetry instrumentation name of the dispatcher.
const TracerName = "github.com/rhuss/authgate/pkg/auth"

// Dispatcher runs the authentication pipeline. It owns a sealed Registry
// and holds no per-request state, so one instance serves concurrent
// requests.
type Dispatcher struct {
	registry *Registry
	tracer   trace.Tracer
}

// NewDispatcher takes ownership of reg. No strategies can be added to reg
// afterwards.
func NewDispatcher(reg *Registry) *Dispatcher {
	reg.seal()
	return &Dispatcher{
		registry: reg,
		tracer:   otel.Tracer(TracerName),
	}
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// SetupRoute validates and normalizes a route's auth configuration. A nil
// opts means the route declares none.
func (d *Dispatcher) SetupRoute(opts *RouteOptions) (*Policy, error) {
	return setupRoute(d.registry, opts)
}

// Resolve returns the policy that applies to a request on a route set up
// with route, or nil when authentication is disabled.
func (d *Dispatcher) Resolve(route *Policy) *Policy {
	return resolve(d.registry, route)
}

// Extend runs every registered RequestExtender on r, in registration order.
func (d *Dispatcher) Extend(r *http.Request) *http.Request {
	for _, ext := range d.registry.extenders() {
		r = ext.ExtendRequest(r)
	}
	return r
}

// Authenticate runs the fallback protocol for p and enforces the policy on
// the resulting session. The returned state is never nil. A nil policy
// leaves the request unauthenticated.
//
// The error is an *Error for 401, 403 and 500 outcomes, the strategy's own
// error for hard failures outside ModeTry, or the context error when ctx
// is cancelled between strategy calls.
func (d *Dispatcher) Authenticate(ctx context.Context, r *http.Request, p *Policy) (*State, error) {
	st := &State{Policy: p}
	if !p.Enabled() {
		st.Policy = nil
		return st, nil
	}

	var step Step
	if s := injectedSession(ctx); s != nil {
		step = Step{Phase: Authenticated, Index: -1, Session: s}
	} else {
		step = Start()
		for !step.Phase.Terminal() {
			if err := ctx.Err(); err != nil {
				return st, err
			}
			name := p.Strategies[step.Index]
			strategy, _, ok := d.registry.Lookup(name)
			if !ok {
				return st, Internal(fmt.Sprintf("strategy %q is not registered", name))
			}
			step = Transition(p, step, d.call(ctx, name, strategy, r))
		}
	}

	st.Challenges = step.Challenges

	switch step.Phase {
	case Unauthenticated:
		st.Err = step.Err
		if step.Err != nil {
			slog.Debug("authentication failed, continuing unauthenticated",
				"mode", string(p.Mode),
				"strategy", p.Strategies[step.Index],
				"error", step.Err,
			)
		}
		observability.AuthDecisionsTotal.WithLabelValues(string(p.Mode), "unauthenticated").Inc()
		return st, nil

	case Rejected:
		observability.AuthDecisionsTotal.WithLabelValues(string(p.Mode), "rejected").Inc()
		return st, step.Err
	}

	st.Session = step.Session
	if step.Index >= 0 {
		st.Strategy = p.Strategies[step.Index]
		st.bound, st.caps, _ = d.registry.Lookup(st.Strategy)
	}

	if err := Enforce(p, step.Session); err != nil {
		if e, ok := AsError(err); ok {
			observability.PolicyViolationsTotal.WithLabelValues(e.Reason).Inc()
		}
		observability.AuthDecisionsTotal.WithLabelValues(string(p.Mode), "forbidden").Inc()
		return st, err
	}

	st.Authenticated = true
	observability.AuthDecisionsTotal.WithLabelValues(string(p.Mode), "authenticated").Inc()
	debug.Log("auth", "request authenticated",
		"strategy", st.Strategy,
		"user", st.Session.User,
		"app", st.Session.App,
	)
	return st, nil
}

// call invokes one strategy inside a span.
func (d *Dispatcher) call(ctx context.Context, name string, s Strategy, r *http.Request) Outcome {
	ctx, span := d.tracer.Start(ctx, "authgate.strategy."+name,
		trace.WithAttributes(attribute.String("authgate.strategy", name)),
	)
	defer span.End()

	session, err := s.Authenticate(ctx, r)

	result := "success"
	switch {
	case err != nil:
		if _, missing := isMissing(err); missing {
			result = "missing"
		} else {
			result = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	case session == nil:
		result = "invalid"
		span.SetStatus(codes.Error, "no session and no error")
	}
	span.SetAttributes(attribute.String("authgate.result", result))
	observability.StrategyAttemptsTotal.WithLabelValues(name, result).Inc()
	debug.Log("strategies", "strategy consulted", "strategy", name, "result", result)

	return Outcome{Session: session, Err: err}
}

// AuthenticatePayload verifies the request body with the strategy bound to
// st. It is a no-op for routes without payload authentication, for
// unauthenticated requests, and for sessions injected upstream. Under
// PayloadOptional it is also a no-op when the session carries no payload
// hash or the bound strategy cannot verify payloads.
func (d *Dispatcher) AuthenticatePayload(ctx context.Context, st *State, payload []byte, contentType string) error {
	if st == nil || !st.Policy.Enabled() || st.Policy.Payload == PayloadOff || !st.Authenticated {
		return nil
	}
	if st.bound == nil {
		return nil
	}
	if st.Policy.Payload == PayloadOptional &&
		(st.Session.Artifact(ArtifactPayloadHash) == "" || !st.caps.Payload) {
		return nil
	}
	if !st.caps.Payload {
		return Internal(fmt.Sprintf("strategy %q cannot authenticate payloads", st.Strategy))
	}

	err := st.bound.(PayloadAuthenticator).AuthenticatePayload(ctx, payload, st.Session, contentType)
	if err != nil {
		debug.Log("auth", "payload authentication failed", "strategy", st.Strategy, "error", err)
	}
	return err
}

// SignResponse lets the strategy bound to st sign the outgoing response
// headers. It is a no-op for unauthenticated requests, strategies without
// response signing, and error responses (status >= 400).
func (d *Dispatcher) SignResponse(ctx context.Context, r *http.Request, st *State, status int, header http.Header) error {
	if st == nil || !st.Authenticated || st.bound == nil || !st.caps.Response {
		return nil
	}
	if status >= http.StatusBadRequest {
		return nil
	}
	return st.bound.(ResponseSigner).SignResponse(ctx, r, st.Session, header)
}
