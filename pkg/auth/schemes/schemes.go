// Package schemes maps the built-in scheme tags to the constructors of
// their strategies and supplies the dependencies they share.
package schemes

import (
	"net/http"

	"github.com/rhuss/authgate/pkg/auth"
	"github.com/rhuss/authgate/pkg/auth/cookie"
	"github.com/rhuss/authgate/pkg/auth/hmacsig"
	"github.com/rhuss/authgate/pkg/auth/static"
	"github.com/rhuss/authgate/pkg/auth/ticket"
	"github.com/rhuss/authgate/pkg/replay"
	"github.com/rhuss/authgate/pkg/storage"
)

// Deps are the collaborators the built-in strategies draw on.
type Deps struct {
	// Credentials backs the signing schemes and static basic mode.
	Credentials storage.CredentialStore

	// Nonces enables replay detection. May be nil.
	Nonces replay.NonceCache

	// HTTPClient fetches JWKS documents. Default: http.DefaultClient.
	HTTPClient *http.Client
}

// Builtin returns the constructors for every built-in scheme.
func Builtin(deps Deps) map[auth.Scheme]auth.Constructor {
	return map[auth.Scheme]auth.Constructor{
		auth.SchemeTicket: func(_ string, opts auth.StrategyOptions) (auth.Strategy, error) {
			var cfg ticket.Config
			if err := opts.DecodeSettings(&cfg); err != nil {
				return nil, err
			}
			if cfg.HTTPClient == nil {
				cfg.HTTPClient = deps.HTTPClient
			}
			return ticket.New(cfg)
		},
		auth.SchemeHMAC: func(name string, opts auth.StrategyOptions) (auth.Strategy, error) {
			var cfg hmacsig.Config
			if err := opts.DecodeSettings(&cfg); err != nil {
				return nil, err
			}
			return hmacsig.New(name, cfg, deps.Credentials, deps.Nonces)
		},
		auth.SchemeURI: func(name string, opts auth.StrategyOptions) (auth.Strategy, error) {
			var cfg hmacsig.BewitConfig
			if err := opts.DecodeSettings(&cfg); err != nil {
				return nil, err
			}
			return hmacsig.NewBewit(name, cfg, deps.Credentials, deps.Nonces)
		},
		auth.SchemeStatic: func(_ string, opts auth.StrategyOptions) (auth.Strategy, error) {
			var cfg static.Config
			if err := opts.DecodeSettings(&cfg); err != nil {
				return nil, err
			}
			return static.New(cfg, deps.Credentials)
		},
		auth.SchemeCookie: func(_ string, opts auth.StrategyOptions) (auth.Strategy, error) {
			var cfg cookie.Config
			if err := opts.DecodeSettings(&cfg); err != nil {
				return nil, err
			}
			return cookie.New(cfg)
		},
	}
}

// NewRegistry creates a registry wired with the built-in constructors.
func NewRegistry(deps Deps) *auth.Registry {
	return auth.NewRegistry(Builtin(deps))
}
