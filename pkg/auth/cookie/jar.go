package cookie

import (
	"context"
	"errors"
	"net/http"

	"github.com/rhuss/authgate/pkg/auth"
)

type jarKey struct{}

// Jar sets and clears the session cookie of the strategy that created it.
type Jar struct {
	s *Strategy
}

// JarFromContext returns the jar attached by the encrypted-cookie strategy,
// or nil.
func JarFromContext(ctx context.Context) *Jar {
	j, _ := ctx.Value(jarKey{}).(*Jar)
	return j
}

// Set stores session in the cookie. It must be called before the response
// headers are written.
func (j *Jar) Set(w http.ResponseWriter, session *auth.Session) error {
	if session == nil || (session.User == "" && session.App == "") {
		return errors.New("cookie: session needs a user or app")
	}
	value, err := j.s.encode(session)
	if err != nil {
		return err
	}
	http.SetCookie(w, j.s.cookie(value, int(j.s.config.TTL.Seconds())))
	return nil
}

// Clear expires the cookie.
func (j *Jar) Clear(w http.ResponseWriter) {
	http.SetCookie(w, j.s.expired())
}
