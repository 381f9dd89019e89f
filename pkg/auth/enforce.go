package auth

import "fmt"

// Enforce applies the scope, terms-of-service and entity checks of p to a
// session produced by a strategy. Each check rejects with its own reason.
func Enforce(p *Policy, s *Session) error {
	if s == nil {
		return Internal("policy enforcement without a session")
	}

	if p.Scope != "" && !s.HasScope(p.Scope) {
		return Forbidden(ReasonInsufficientScope,
			fmt.Sprintf("Insufficient scope - %s expected", p.Scope),
			map[string]any{"scope": s.Scope, "required": p.Scope})
	}

	if threshold, ok := p.TOS.Get(); ok {
		if s.Ext.TOS == nil || *s.Ext.TOS < threshold {
			values := map[string]any{"required": threshold}
			if s.Ext.TOS != nil {
				values["tos"] = *s.Ext.TOS
			}
			return Forbidden(ReasonInsufficientTOS, "Insufficient TOS accepted", values)
		}
	}

	switch p.Entity {
	case EntityUser:
		if s.User == "" {
			return Forbidden(ReasonUserEndpoint,
				"Application session used on a user endpoint",
				map[string]any{"app": s.App})
		}
	case EntityApp:
		if s.User != "" {
			return Forbidden(ReasonAppEndpoint,
				"User session used on an application endpoint",
				map[string]any{"user": s.User})
		}
	}

	return nil
}
