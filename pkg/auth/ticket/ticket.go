// Package ticket implements the ticket-delegated scheme: a client presents
// a bearer ticket (a signed JWT) issued by a trusted authority on behalf of
// an application and, optionally, a user.
//
// Tickets are verified either with a shared HMAC secret (HS256) or with RSA
// keys served from a JWKS endpoint (RS256/384/512). The claims app, user,
// scope and tos populate the session.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/authgate/pkg/auth"
)

// Config holds the ticket strategy settings.
type Config struct {
	// Realm is advertised in the Bearer challenge. Default: "authgate".
	Realm string `yaml:"realm"`

	// Secret enables HS256 verification with a shared secret.
	Secret string `yaml:"secret"`

	// JWKSURL enables RSA verification with keys from a JWKS endpoint.
	JWKSURL string `yaml:"jwks_url"`

	// Issuer and Audience are validated when set.
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Leeway tolerates clock skew on exp/nbf/iat. Default: 30 seconds.
	Leeway time.Duration `yaml:"leeway"`

	// HTTPClient is used to fetch the JWKS. Default: http.DefaultClient.
	HTTPClient *http.Client `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.Realm == "" {
		c.Realm = "authgate"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.Leeway == 0 {
		c.Leeway = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Validate checks that exactly one key source is configured.
func (c Config) Validate() error {
	switch {
	case c.Secret == "" && c.JWKSURL == "":
		return errors.New("ticket: one of secret or jwks_url is required")
	case c.Secret != "" && c.JWKSURL != "":
		return errors.New("ticket: secret and jwks_url are mutually exclusive")
	}
	return nil
}

// Strategy verifies bearer tickets.
type Strategy struct {
	config    Config
	challenge string
	keys      *jwksCache
}

var _ auth.Strategy = (*Strategy)(nil)

// New creates a ticket strategy.
func New(cfg Config) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	s := &Strategy{
		config:    cfg,
		challenge: fmt.Sprintf("Bearer realm=%q", cfg.Realm),
	}
	if cfg.JWKSURL != "" {
		s.keys = newJWKSCache(cfg.JWKSURL, cfg.CacheTTL, cfg.HTTPClient)
	}
	return s, nil
}

// Authenticate implements auth.Strategy.
//
// Outcomes:
//   - missing: no Authorization header or a scheme other than Bearer
//   - unauthorized: a bearer ticket that fails verification or names no principal
//   - session: a valid ticket
func (s *Strategy) Authenticate(ctx context.Context, r *http.Request) (*auth.Session, error) {
	scheme, token, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return nil, auth.Missing(s.challenge)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, auth.Unauthorized("Empty ticket", s.challenge)
	}

	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (any, error) {
		return s.key(ctx, t)
	}, s.parserOptions()...)
	if err != nil {
		slog.Debug("ticket validation failed", "error", err)
		return nil, auth.Unauthorized("Invalid ticket", s.challenge)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return nil, auth.Unauthorized("Invalid ticket claims", s.challenge)
	}

	session := &auth.Session{
		App:   claimString(claims, "app"),
		User:  claimString(claims, "user"),
		Scope: extractScopes(claims, "scope"),
	}
	if session.App == "" && session.User == "" {
		return nil, auth.Unauthorized("Ticket names no application or user", s.challenge)
	}
	if tos, ok := claimInt(claims, "tos"); ok {
		session.Ext.TOS = auth.IntPtr(tos)
	}
	return session, nil
}

// key selects the verification key for t.
func (s *Strategy) key(ctx context.Context, t *jwtlib.Token) (any, error) {
	if s.keys == nil {
		return []byte(s.config.Secret), nil
	}

	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("ticket missing kid header")
	}
	key, err := s.keys.getKey(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, err)
	}
	return key, nil
}

func (s *Strategy) parserOptions() []jwtlib.ParserOption {
	methods := []string{"HS256"}
	if s.keys != nil {
		methods = []string{"RS256", "RS384", "RS512"}
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods(methods),
		jwtlib.WithLeeway(s.config.Leeway),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(s.config.Audience))
	}
	return opts
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// claimInt accepts a JSON number or a numeric string.
func claimInt(claims jwtlib.MapClaims, key string) (int, bool) {
	switch v := claims[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// extractScopes reads a space-separated string or a JSON array.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if parts := strings.Fields(v); len(parts) > 0 {
			return parts
		}
	case []any:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
