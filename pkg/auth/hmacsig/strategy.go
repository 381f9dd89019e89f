package hmacsig

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/authgate/pkg/auth"
	"github.com/rhuss/authgate/pkg/debug"
	"github.com/rhuss/authgate/pkg/observability"
	"github.com/rhuss/authgate/pkg/replay"
	"github.com/rhuss/authgate/pkg/storage"
)

// Artifact keys set on sessions produced by the hmac-signed scheme.
const (
	ArtifactID       = "id"
	ArtifactTS       = "ts"
	ArtifactNonce    = "nonce"
	ArtifactExt      = "ext"
	ArtifactMAC      = "mac"
	ArtifactMethod   = "method"
	ArtifactResource = "resource"
	ArtifactHost     = "host"
	ArtifactPort     = "port"
)

const (
	schemeName = "Hawk"

	// ServerAuthorizationHeader carries the response signature.
	ServerAuthorizationHeader = "Server-Authorization"
)

// DefaultSkew is the accepted clock difference between client and server.
const DefaultSkew = 60 * time.Second

// Config holds the hmac-signed strategy settings.
type Config struct {
	// Skew is the accepted clock difference. Default: 60 seconds.
	Skew time.Duration `yaml:"timestamp_skew"`

	// SignResponses adds a Server-Authorization header to successful
	// responses. Default: true.
	SignResponses *bool `yaml:"sign_responses"`
}

// Strategy verifies Hawk-style signed requests.
type Strategy struct {
	name   string
	skew   time.Duration
	sign   bool
	store  storage.CredentialStore
	nonces replay.NonceCache
	now    func() time.Time
}

var (
	_ auth.PayloadAuthenticator = (*Strategy)(nil)
	_ auth.ResponseSigner       = (*Strategy)(nil)
)

// New creates an hmac-signed strategy registered under name. A nil nonces
// cache disables replay detection.
func New(name string, cfg Config, store storage.CredentialStore, nonces replay.NonceCache) (*Strategy, error) {
	if store == nil {
		return nil, errors.New("hmacsig: a credential store is required")
	}
	if cfg.Skew <= 0 {
		cfg.Skew = DefaultSkew
	}
	sign := cfg.SignResponses == nil || *cfg.SignResponses
	return &Strategy{
		name:   name,
		skew:   cfg.Skew,
		sign:   sign,
		store:  store,
		nonces: nonces,
		now:    time.Now,
	}, nil
}

func unauthorized(msg string) error {
	return auth.Unauthorized(msg, schemeName)
}

// Authenticate implements auth.Strategy.
func (s *Strategy) Authenticate(ctx context.Context, r *http.Request) (*auth.Session, error) {
	scheme, params, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	if !strings.EqualFold(scheme, schemeName) {
		return nil, auth.Missing(schemeName)
	}

	attrs, err := parseAttributes(params, "id", "ts", "nonce", "hash", "ext", "mac", "app", "dlg")
	if err != nil {
		return nil, unauthorized(err.Error())
	}
	for _, required := range []string{"id", "ts", "nonce", "mac"} {
		if attrs[required] == "" {
			return nil, unauthorized("Missing attributes")
		}
	}

	cred, err := s.store.Lookup(ctx, attrs["id"])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, unauthorized("Unknown credentials")
		}
		return nil, fmt.Errorf("looking up credential: %w", err)
	}

	host, port := hostPort(r)
	a := artifacts{
		Type:     "header",
		TS:       attrs["ts"],
		Nonce:    attrs["nonce"],
		Method:   r.Method,
		Resource: resource(r),
		Host:     host,
		Port:     port,
		Hash:     attrs["hash"],
		Ext:      attrs["ext"],
	}

	mac, err := computeMAC(cred, a)
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", cred.ID, err)
	}
	if debug.TraceIsEnabled("strategies") {
		debug.Trace("strategies", "hmac normalized string", "strategy", s.name, "normalized", a.normalized())
	}
	if !equal(mac, attrs["mac"]) {
		return nil, unauthorized("Bad mac")
	}

	if s.nonces != nil {
		replayed, err := s.nonces.Check(ctx, replay.Key(cred.ID, a.TS, a.Nonce), 2*s.skew)
		if err != nil {
			return nil, fmt.Errorf("checking nonce: %w", err)
		}
		if replayed {
			observability.ReplaysRejectedTotal.WithLabelValues(s.name).Inc()
			return nil, unauthorized("Invalid nonce")
		}
	}

	if err := s.checkTimestamp(cred, a.TS); err != nil {
		return nil, err
	}

	session := cred.Session()
	session.Artifacts = map[string]string{
		ArtifactID:               cred.ID,
		ArtifactTS:               a.TS,
		ArtifactNonce:            a.Nonce,
		auth.ArtifactPayloadHash: a.Hash,
		ArtifactExt:              a.Ext,
		ArtifactMAC:              attrs["mac"],
		ArtifactMethod:           a.Method,
		ArtifactResource:         a.Resource,
		ArtifactHost:             a.Host,
		ArtifactPort:             a.Port,
	}
	return session, nil
}

// checkTimestamp rejects timestamps outside the skew window. The error
// challenge carries the server time and its MAC.
func (s *Strategy) checkTimestamp(cred *storage.Credential, raw string) error {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return unauthorized("Invalid timestamp")
	}
	now := s.now()
	diff := now.Sub(time.Unix(ts, 0))
	if diff < 0 {
		diff = -diff
	}
	if diff <= s.skew {
		return nil
	}

	tsm, err := timestampMAC(cred, now.Unix())
	if err != nil {
		return err
	}
	challenge := formatAttributes(schemeName, map[string]string{
		"ts":    strconv.FormatInt(now.Unix(), 10),
		"tsm":   tsm,
		"error": "Stale timestamp",
	})
	return auth.Unauthorized("Stale timestamp", challenge)
}

// AuthenticatePayload implements auth.PayloadAuthenticator. The body must
// match the hash the client signed; a request signed without a hash fails.
func (s *Strategy) AuthenticatePayload(ctx context.Context, payload []byte, session *auth.Session, contentType string) error {
	signed := session.Artifact(auth.ArtifactPayloadHash)
	if signed == "" {
		return unauthorized("Missing payload authentication")
	}

	cred, err := s.store.Lookup(ctx, session.Artifact(ArtifactID))
	if err != nil {
		return fmt.Errorf("looking up credential: %w", err)
	}
	calculated, err := PayloadHash(cred.Algorithm, payload, contentType)
	if err != nil {
		return err
	}
	if !equal(calculated, signed) {
		return unauthorized("Bad payload hash")
	}
	return nil
}

// SignResponse implements auth.ResponseSigner. The response MAC covers the
// request's timestamp, nonce and resource.
func (s *Strategy) SignResponse(ctx context.Context, _ *http.Request, session *auth.Session, header http.Header) error {
	if !s.sign {
		return nil
	}

	cred, err := s.store.Lookup(ctx, session.Artifact(ArtifactID))
	if err != nil {
		return fmt.Errorf("looking up credential: %w", err)
	}

	a := artifacts{
		Type:     "response",
		TS:       session.Artifact(ArtifactTS),
		Nonce:    session.Artifact(ArtifactNonce),
		Method:   session.Artifact(ArtifactMethod),
		Resource: session.Artifact(ArtifactResource),
		Host:     session.Artifact(ArtifactHost),
		Port:     session.Artifact(ArtifactPort),
	}
	mac, err := computeMAC(cred, a)
	if err != nil {
		return err
	}

	header.Set(ServerAuthorizationHeader, formatAttributes(schemeName, map[string]string{"mac": mac}))
	return nil
}
