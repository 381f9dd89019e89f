package hmacsig

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/authgate/pkg/storage"
)

// HeaderOptions tune a client signature.
type HeaderOptions struct {
	// Timestamp overrides the current time.
	Timestamp time.Time
	// Nonce overrides the generated nonce.
	Nonce string
	Ext   string

	// Payload and ContentType, when Payload is non-nil, add a payload hash.
	Payload     []byte
	ContentType string
}

// Header builds the Authorization header value a client sends for a
// request to rawURL.
func Header(cred *storage.Credential, method, rawURL string, opts HeaderOptions) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	nonce := opts.Nonce
	if nonce == "" {
		nonce = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}

	host, port := urlHostPort(u)
	a := artifacts{
		Type:     "header",
		TS:       strconv.FormatInt(ts.Unix(), 10),
		Nonce:    nonce,
		Method:   method,
		Resource: u.RequestURI(),
		Host:     host,
		Port:     port,
		Ext:      opts.Ext,
	}
	if opts.Payload != nil {
		if a.Hash, err = PayloadHash(cred.Algorithm, opts.Payload, opts.ContentType); err != nil {
			return "", err
		}
	}

	mac, err := computeMAC(cred, a)
	if err != nil {
		return "", err
	}
	return formatAttributes(schemeName, map[string]string{
		"id":    cred.ID,
		"ts":    a.TS,
		"nonce": a.Nonce,
		"hash":  a.Hash,
		"ext":   a.Ext,
		"mac":   mac,
	}), nil
}

// ResponseMAC computes the Server-Authorization mac expected for a response
// to a request signed with header.
func ResponseMAC(cred *storage.Credential, method, rawURL, header string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	_, params, _ := strings.Cut(header, " ")
	attrs, err := parseAttributes(params, "id", "ts", "nonce", "hash", "ext", "mac")
	if err != nil {
		return "", err
	}
	host, port := urlHostPort(u)
	return computeMAC(cred, artifacts{
		Type:     "response",
		TS:       attrs["ts"],
		Nonce:    attrs["nonce"],
		Method:   method,
		Resource: u.RequestURI(),
		Host:     host,
		Port:     port,
	})
}

// BewitToken builds the bewit parameter value granting GET access to
// rawURL until exp.
func BewitToken(cred *storage.Credential, rawURL string, exp time.Time, ext string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	host, port := urlHostPort(u)
	expRaw := strconv.FormatInt(exp.Unix(), 10)
	mac, err := computeMAC(cred, artifacts{
		Type:     "bewit",
		TS:       expRaw,
		Method:   "GET",
		Resource: u.RequestURI(),
		Host:     host,
		Port:     port,
		Ext:      ext,
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString([]byte(cred.ID + `\` + expRaw + `\` + mac + `\` + ext)), nil
}

func urlHostPort(u *url.URL) (string, string) {
	if p := u.Port(); p != "" {
		return u.Hostname(), p
	}
	if u.Scheme == "https" {
		return u.Hostname(), "443"
	}
	return u.Hostname(), "80"
}
