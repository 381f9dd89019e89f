package storage

import (
	"context"

	"github.com/rhuss/authgate/pkg/auth"
)

// Algorithms accepted for MAC keys.
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmSHA1   = "sha1"
)

// Credential is a provisioned client credential. The signing strategies use
// Key, the static strategy in basic mode uses PasswordHash.
type Credential struct {
	ID           string
	Key          string
	Algorithm    string
	PasswordHash string

	User  string
	App   string
	Scope []string
	TOS   *int
}

// CredentialStore looks up credentials by id.
type CredentialStore interface {
	// Lookup returns ErrNotFound when no enabled credential has the id.
	Lookup(ctx context.Context, id string) (*Credential, error)
}

// Session builds the session a strategy returns for a verified credential.
func (c *Credential) Session() *auth.Session {
	s := &auth.Session{
		User:  c.User,
		App:   c.App,
		Scope: append([]string(nil), c.Scope...),
	}
	if c.TOS != nil {
		s.Ext.TOS = auth.IntPtr(*c.TOS)
	}
	return s
}

// AlgorithmOrDefault returns the MAC algorithm, defaulting to sha256.
func (c *Credential) AlgorithmOrDefault() string {
	if c.Algorithm == "" {
		return AlgorithmSHA256
	}
	return c.Algorithm
}
