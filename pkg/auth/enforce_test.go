package auth

import (
	"net/http"
	"testing"
)

func TestEnforce(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		session Session
		reason  string
	}{
		{"no requirements", Policy{Entity: EntityAny}, Session{App: "a"}, ""},
		{"scope granted", Policy{Scope: "x"}, Session{User: "u1", Scope: []string{"y", "x"}}, ""},
		{"scope missing", Policy{Scope: "x"}, Session{User: "u1", Scope: []string{"y"}}, ReasonInsufficientScope},
		{"scope none", Policy{Scope: "x"}, Session{User: "u1"}, ReasonInsufficientScope},
		{"tos met", Policy{TOS: Some(2)}, Session{User: "u1", Ext: Ext{TOS: IntPtr(3)}}, ""},
		{"tos equal", Policy{TOS: Some(2)}, Session{User: "u1", Ext: Ext{TOS: IntPtr(2)}}, ""},
		{"tos low", Policy{TOS: Some(2)}, Session{User: "u1", Ext: Ext{TOS: IntPtr(1)}}, ReasonInsufficientTOS},
		{"tos unknown", Policy{TOS: Some(0)}, Session{User: "u1"}, ReasonInsufficientTOS},
		{"tos zero accepted", Policy{TOS: Some(0)}, Session{User: "u1", Ext: Ext{TOS: IntPtr(0)}}, ""},
		{"tos not required", Policy{}, Session{User: "u1"}, ""},
		{"user endpoint app session", Policy{Entity: EntityUser}, Session{App: "a"}, ReasonUserEndpoint},
		{"user endpoint user session", Policy{Entity: EntityUser}, Session{User: "u1", App: "a"}, ""},
		{"app endpoint user session", Policy{Entity: EntityApp}, Session{User: "u1", App: "a"}, ReasonAppEndpoint},
		{"app endpoint app session", Policy{Entity: EntityApp}, Session{App: "a"}, ""},
		{"scope checked before entity", Policy{Scope: "x", Entity: EntityApp}, Session{User: "u1"}, ReasonInsufficientScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := tt.session
			err := Enforce(&tt.policy, &session)
			if tt.reason == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			e := asError(t, err)
			if e.Status != http.StatusForbidden {
				t.Errorf("Status = %d, want 403", e.Status)
			}
			if e.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", e.Reason, tt.reason)
			}
		})
	}
}

func TestEnforce_ViolationValues(t *testing.T) {
	err := Enforce(&Policy{Scope: "admin"}, &Session{User: "u1", Scope: []string{"read"}})
	e := asError(t, err)
	if e.Values["required"] != "admin" {
		t.Errorf("Values = %v, want required admin", e.Values)
	}
	if e.Message != "Insufficient scope - admin expected" {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestEnforce_NilSession(t *testing.T) {
	e := asError(t, Enforce(&Policy{}, nil))
	if e.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", e.Status)
	}
}
