// Package cookie implements the encrypted-cookie scheme. The cookie holds a
// compact JWE (dir + A256GCM) of the session and its expiry, so the server
// keeps no session state.
//
// The strategy extends every request with a Jar. Login and logout handlers
// use it to set or clear the cookie.
package cookie

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/rhuss/authgate/pkg/auth"
)

const challenge = "Cookie"

// MinPasswordLength is the shortest accepted encryption password.
const MinPasswordLength = 32

// Config holds the encrypted-cookie strategy settings.
type Config struct {
	// Name of the cookie. Default: "sid".
	Name string `yaml:"name"`

	// Password derives the content encryption key. At least 32 characters.
	Password string `yaml:"password"`

	// TTL bounds the session lifetime. Default: 24 hours.
	TTL time.Duration `yaml:"ttl"`

	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	Insecure bool   `yaml:"insecure"`
	SameSite string `yaml:"same_site"`

	// RedirectTo turns missing or invalid cookies into a redirect.
	RedirectTo string `yaml:"redirect_to"`

	// AppendNext adds the original path to the redirect under this query
	// parameter.
	AppendNext string `yaml:"append_next"`

	// ClearInvalid expires a cookie that fails to decrypt.
	ClearInvalid bool `yaml:"clear_invalid"`
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "sid"
	}
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.Path == "" {
		c.Path = "/"
	}
}

func (c Config) sameSite() (http.SameSite, error) {
	switch strings.ToLower(c.SameSite) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	}
	return 0, fmt.Errorf("cookie: invalid same_site %q", c.SameSite)
}

// envelope is the encrypted cookie content.
type envelope struct {
	Session *auth.Session `json:"session"`
	Exp     int64         `json:"exp"`
}

// Strategy authenticates requests by their session cookie.
type Strategy struct {
	config   Config
	key      []byte
	sameSite http.SameSite
	now      func() time.Time
}

var _ auth.RequestExtender = (*Strategy)(nil)

// New creates an encrypted-cookie strategy.
func New(cfg Config) (*Strategy, error) {
	if len(cfg.Password) < MinPasswordLength {
		return nil, fmt.Errorf("cookie: password must be at least %d characters", MinPasswordLength)
	}
	cfg.applyDefaults()
	sameSite, err := cfg.sameSite()
	if err != nil {
		return nil, err
	}
	key := sha256.Sum256([]byte(cfg.Password))
	return &Strategy{config: cfg, key: key[:], sameSite: sameSite, now: time.Now}, nil
}

// Authenticate implements auth.Strategy.
func (s *Strategy) Authenticate(_ context.Context, r *http.Request) (*auth.Session, error) {
	c, err := r.Cookie(s.config.Name)
	if err != nil || c.Value == "" {
		if s.config.RedirectTo != "" {
			return nil, s.redirect(r)
		}
		return nil, auth.Missing(challenge)
	}

	session, err := s.decode(c.Value)
	if err == nil {
		return session, nil
	}

	var fail *auth.Error
	if s.config.RedirectTo != "" {
		fail = s.redirect(r)
	} else {
		msg := "Invalid cookie"
		if errors.Is(err, errExpired) {
			msg = "Expired session"
		}
		fail = auth.Unauthorized(msg, challenge)
	}
	if s.config.ClearInvalid {
		if fail.Header == nil {
			fail.Header = make(http.Header)
		}
		fail.Header.Add("Set-Cookie", s.expired().String())
	}
	return nil, fail
}

func (s *Strategy) redirect(r *http.Request) *auth.Error {
	location := s.config.RedirectTo
	if s.config.AppendNext != "" {
		u, err := url.Parse(location)
		if err == nil {
			q := u.Query()
			q.Set(s.config.AppendNext, r.URL.RequestURI())
			u.RawQuery = q.Encode()
			location = u.String()
		}
	}
	return auth.Redirect(location)
}

// ExtendRequest implements auth.RequestExtender.
func (s *Strategy) ExtendRequest(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), jarKey{}, &Jar{s: s}))
}

func (s *Strategy) encode(session *auth.Session) (string, error) {
	payload, err := json.Marshal(envelope{Session: session, Exp: s.now().Add(s.config.TTL).Unix()})
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}

	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: jose.DIRECT, Key: s.key}, nil)
	if err != nil {
		return "", fmt.Errorf("creating encrypter: %w", err)
	}
	obj, err := enc.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("encrypting session: %w", err)
	}
	return obj.CompactSerialize()
}

var (
	errInvalidCookie = errors.New("invalid cookie")
	errExpired       = errors.New("expired session")
)

func (s *Strategy) decode(value string) (*auth.Session, error) {
	obj, err := jose.ParseEncrypted(value, []jose.KeyAlgorithm{jose.DIRECT}, []jose.ContentEncryption{jose.A256GCM})
	if err != nil {
		return nil, errInvalidCookie
	}
	payload, err := obj.Decrypt(s.key)
	if err != nil {
		return nil, errInvalidCookie
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Session == nil {
		return nil, errInvalidCookie
	}
	if !s.now().Before(time.Unix(env.Exp, 0)) {
		return nil, errExpired
	}
	return env.Session, nil
}

func (s *Strategy) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.Name,
		Value:    value,
		Path:     s.config.Path,
		Domain:   s.config.Domain,
		MaxAge:   maxAge,
		Secure:   !s.config.Insecure,
		HttpOnly: true,
		SameSite: s.sameSite,
	}
}

func (s *Strategy) expired() *http.Cookie {
	return s.cookie("", -1)
}
