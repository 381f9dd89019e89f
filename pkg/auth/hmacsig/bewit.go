package hmacsig

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/authgate/pkg/auth"
	"github.com/rhuss/authgate/pkg/observability"
	"github.com/rhuss/authgate/pkg/replay"
	"github.com/rhuss/authgate/pkg/storage"
)

const bewitChallenge = "Bewit"

// BewitConfig holds the uri-signed strategy settings.
type BewitConfig struct {
	// SingleUse rejects a bewit after its first successful use. It needs
	// a nonce cache.
	SingleUse bool `yaml:"single_use"`
}

// Bewit verifies the bewit query parameter of GET and HEAD requests.
type Bewit struct {
	name      string
	singleUse bool
	store     storage.CredentialStore
	nonces    replay.NonceCache
	now       func() time.Time
}

// NewBewit creates a uri-signed strategy registered under name.
func NewBewit(name string, cfg BewitConfig, store storage.CredentialStore, nonces replay.NonceCache) (*Bewit, error) {
	if store == nil {
		return nil, errors.New("hmacsig: a credential store is required")
	}
	if cfg.SingleUse && nonces == nil {
		return nil, errors.New("hmacsig: single_use requires a replay cache")
	}
	return &Bewit{
		name:      name,
		singleUse: cfg.SingleUse,
		store:     store,
		nonces:    nonces,
		now:       time.Now,
	}, nil
}

// Authenticate implements auth.Strategy.
func (b *Bewit) Authenticate(ctx context.Context, r *http.Request) (*auth.Session, error) {
	raw, rest, found := splitBewit(r.URL.RawQuery)
	if !found {
		return nil, auth.Missing(bewitChallenge)
	}

	fail := func(msg string) error { return auth.Unauthorized(msg, bewitChallenge) }

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return nil, fail("Invalid method")
	}
	if r.Header.Get("Authorization") != "" {
		return nil, fail("Multiple authentications")
	}
	if raw == "" {
		return nil, fail("Empty bewit")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, fail("Invalid bewit encoding")
	}
	parts := strings.Split(string(decoded), `\`)
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fail("Invalid bewit structure")
	}
	id, expRaw, mac, ext := parts[0], parts[1], parts[2], parts[3]

	exp, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil {
		return nil, fail("Invalid bewit structure")
	}
	if !b.now().Before(time.Unix(exp, 0)) {
		return nil, fail("Access expired")
	}

	cred, err := b.store.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fail("Unknown credentials")
		}
		return nil, fmt.Errorf("looking up credential: %w", err)
	}

	path := r.URL.EscapedPath()
	if rest != "" {
		path += "?" + rest
	}
	host, port := hostPort(r)
	expected, err := computeMAC(cred, artifacts{
		Type:     "bewit",
		TS:       expRaw,
		Method:   http.MethodGet,
		Resource: path,
		Host:     host,
		Port:     port,
		Ext:      ext,
	})
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", cred.ID, err)
	}
	if !equal(expected, mac) {
		return nil, fail("Bad mac")
	}

	if b.singleUse {
		ttl := time.Unix(exp, 0).Sub(b.now())
		used, err := b.nonces.Check(ctx, replay.Key(cred.ID, expRaw, mac), ttl)
		if err != nil {
			return nil, fmt.Errorf("checking bewit: %w", err)
		}
		if used {
			observability.ReplaysRejectedTotal.WithLabelValues(b.name).Inc()
			return nil, fail("Bewit already used")
		}
	}

	session := cred.Session()
	session.Artifacts = map[string]string{
		ArtifactID:  cred.ID,
		ArtifactTS:  expRaw,
		ArtifactExt: ext,
	}
	return session, nil
}

// splitBewit extracts the bewit parameter from a raw query and returns the
// remaining query with its original encoding and order.
func splitBewit(rawQuery string) (bewit, rest string, found bool) {
	if rawQuery == "" {
		return "", "", false
	}
	var kept []string
	for _, part := range strings.Split(rawQuery, "&") {
		if v, ok := strings.CutPrefix(part, "bewit="); ok && !found {
			bewit, found = v, true
			continue
		}
		kept = append(kept, part)
	}
	return bewit, strings.Join(kept, "&"), found
}
