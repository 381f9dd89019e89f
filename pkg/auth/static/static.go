// Package static implements the static-credential scheme in one of two
// modes:
//
//   - basic: HTTP Basic credentials, looked up by username in the credential
//     store and checked against a bcrypt password hash.
//   - apikey: bearer API keys from configuration. Keys are hashed with
//     SHA-256 when loaded and compared in constant time; plaintext keys are
//     not kept.
package static

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/rhuss/authgate/pkg/auth"
	"github.com/rhuss/authgate/pkg/storage"
)

// Modes.
const (
	ModeBasic  = "basic"
	ModeAPIKey = "apikey"
)

// Config holds the static-credential strategy settings.
type Config struct {
	// Mode selects basic or apikey. Default: basic.
	Mode string `yaml:"mode"`

	// Realm is advertised in the challenge. Default: "authgate".
	Realm string `yaml:"realm"`

	// Keys are the accepted API keys in apikey mode.
	Keys []APIKey `yaml:"keys"`
}

// APIKey maps a key to the session it grants. Either Key or its hex
// SHA-256 digest KeySHA256 is set.
type APIKey struct {
	Key       string   `yaml:"key"`
	KeySHA256 string   `yaml:"key_sha256"`
	User      string   `yaml:"user"`
	App       string   `yaml:"app"`
	Scope     []string `yaml:"scope"`
	TOS       *int     `yaml:"tos"`
}

type keyEntry struct {
	hash    [32]byte
	session auth.Session
}

// Strategy verifies static credentials.
type Strategy struct {
	mode      string
	challenge string
	store     storage.CredentialStore
	keys      []keyEntry
}

// dummyHash is compared against when the username is unknown so that both
// paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("authgate-dummy-password"), bcrypt.DefaultCost)

// New creates a static-credential strategy. Basic mode needs store.
func New(cfg Config, store storage.CredentialStore) (*Strategy, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeBasic
	}
	if cfg.Realm == "" {
		cfg.Realm = "authgate"
	}

	s := &Strategy{mode: cfg.Mode, store: store}
	switch cfg.Mode {
	case ModeBasic:
		if store == nil {
			return nil, errors.New("static: basic mode requires a credential store")
		}
		s.challenge = fmt.Sprintf("Basic realm=%q", cfg.Realm)
	case ModeAPIKey:
		if len(cfg.Keys) == 0 {
			return nil, errors.New("static: apikey mode requires at least one key")
		}
		for i, k := range cfg.Keys {
			entry, err := newKeyEntry(k)
			if err != nil {
				return nil, fmt.Errorf("static: keys[%d]: %w", i, err)
			}
			s.keys = append(s.keys, entry)
		}
		s.challenge = fmt.Sprintf("Bearer realm=%q", cfg.Realm)
	default:
		return nil, fmt.Errorf("static: unknown mode %q", cfg.Mode)
	}
	return s, nil
}

func newKeyEntry(k APIKey) (keyEntry, error) {
	e := keyEntry{session: auth.Session{
		User:  k.User,
		App:   k.App,
		Scope: k.Scope,
	}}
	if k.TOS != nil {
		e.session.Ext.TOS = auth.IntPtr(*k.TOS)
	}

	switch {
	case k.Key != "" && k.KeySHA256 != "":
		return e, errors.New("key and key_sha256 are mutually exclusive")
	case k.Key != "":
		e.hash = sha256.Sum256([]byte(k.Key))
	case k.KeySHA256 != "":
		b, err := hex.DecodeString(k.KeySHA256)
		if err != nil || len(b) != sha256.Size {
			return e, errors.New("key_sha256 must be a hex SHA-256 digest")
		}
		copy(e.hash[:], b)
	default:
		return e, errors.New("key or key_sha256 is required")
	}
	if e.session.User == "" && e.session.App == "" {
		return e, errors.New("user or app is required")
	}
	return e, nil
}

// Authenticate implements auth.Strategy.
func (s *Strategy) Authenticate(ctx context.Context, r *http.Request) (*auth.Session, error) {
	if s.mode == ModeAPIKey {
		return s.authenticateKey(r)
	}
	return s.authenticateBasic(ctx, r)
}

func (s *Strategy) authenticateBasic(ctx context.Context, r *http.Request) (*auth.Session, error) {
	scheme, encoded, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	if !strings.EqualFold(scheme, "Basic") {
		return nil, auth.Missing(s.challenge)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, auth.Unauthorized("Bad header encoding", s.challenge)
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, auth.Unauthorized("Bad header format", s.challenge)
	}
	if username == "" {
		return nil, auth.Unauthorized("Missing username", s.challenge)
	}

	cred, err := s.store.Lookup(ctx, username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("looking up credential: %w", err)
	}

	known := cred != nil && cred.PasswordHash != ""
	hash := dummyHash
	if known {
		hash = []byte(cred.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !known {
		return nil, auth.Unauthorized("Bad username or password", s.challenge)
	}

	session := cred.Session()
	if session.User == "" && session.App == "" {
		session.User = cred.ID
	}
	return session, nil
}

func (s *Strategy) authenticateKey(r *http.Request) (*auth.Session, error) {
	scheme, token, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return nil, auth.Missing(s.challenge)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, auth.Unauthorized("Empty API key", s.challenge)
	}

	sum := sha256.Sum256([]byte(token))
	for _, entry := range s.keys {
		if subtle.ConstantTimeCompare(sum[:], entry.hash[:]) == 1 {
			session := entry.session
			session.Scope = append([]string(nil), entry.session.Scope...)
			return &session, nil
		}
	}
	return nil, auth.Unauthorized("Invalid API key", s.challenge)
}
