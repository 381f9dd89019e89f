package hmacsig

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sort"
	"strings"
)

var errBadHeader = errors.New("bad header format")

// allowed attribute values: printable ASCII without double quote and
// backslash.
func validValue(v string) bool {
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}

// parseAttributes parses `key="value", key="value"` pairs. Only keys in
// allowed are accepted and none may repeat.
func parseAttributes(s string, allowed ...string) (map[string]string, error) {
	out := make(map[string]string)
	s = strings.TrimSpace(s)
	for s != "" {
		key, rest, ok := strings.Cut(s, "=")
		if !ok {
			return nil, errBadHeader
		}
		key = strings.TrimSpace(key)
		rest = strings.TrimLeft(rest, " ")
		if !strings.HasPrefix(rest, `"`) {
			return nil, errBadHeader
		}
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return nil, errBadHeader
		}
		value := rest[1 : end+1]
		s = strings.TrimLeft(rest[end+2:], " ")
		if s != "" {
			if s[0] != ',' {
				return nil, errBadHeader
			}
			s = strings.TrimLeft(s[1:], " ")
		}

		if !slices.Contains(allowed, key) {
			return nil, fmt.Errorf("unknown attribute: %s", key)
		}
		if !validValue(value) {
			return nil, fmt.Errorf("bad attribute value: %s", key)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("duplicate attribute: %s", key)
		}
		out[key] = value
	}
	return out, nil
}

// formatAttributes renders attributes in a stable order, skipping empty
// values.
func formatAttributes(scheme string, attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf(`%s="%s"`, k, attrs[k])
	}
	return scheme + " " + strings.Join(parts, ", ")
}

// hostPort splits the request host, defaulting the port from the scheme.
func hostPort(r *http.Request) (string, string) {
	host := r.Host
	if h, p, err := net.SplitHostPort(host); err == nil {
		return h, p
	}
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return host, "443"
	}
	return host, "80"
}

// resource returns the path and query the client signed.
func resource(r *http.Request) string {
	return r.URL.RequestURI()
}
