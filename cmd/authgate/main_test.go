package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rhuss/authgate/pkg/auth"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck_Valid(t *testing.T) {
	path := writeConfig(t, `
auth:
  strategies:
    hawk:
      scheme: hmac-signed
      default: true
    link:
      scheme: uri-signed
  routes:
    - path: /files/{name}
      auth:
        strategies: [hawk, link]
    - path: /open
      auth: false
credentials:
  entries:
    - id: app1
      key: k1
      app: billing
`)
	out, err := execute(t, "check", "--config", path)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if !strings.Contains(out, "configuration ok") {
		t.Errorf("output = %q, want confirmation", out)
	}
	if !strings.Contains(out, "default:    hawk") {
		t.Errorf("output = %q, want the default strategy", out)
	}
}

func TestCheck_UnknownStrategy(t *testing.T) {
	path := writeConfig(t, `
auth:
  routes:
    - path: /x
      auth: nobody
`)
	_, err := execute(t, "check", "--config", path)
	if !errors.Is(err, auth.ErrUnknownStrategy) {
		t.Errorf("check error = %v, want ErrUnknownStrategy", err)
	}
}

func TestCheck_PayloadUnsupported(t *testing.T) {
	path := writeConfig(t, `
auth:
  strategies:
    keys:
      scheme: static-credential
      settings:
        mode: apikey
        keys:
          - key: k
            app: a
  routes:
    - method: POST
      path: /x
      auth:
        strategy: keys
        payload: required
`)
	_, err := execute(t, "check", "--config", path)
	if !errors.Is(err, auth.ErrPayloadUnsupported) {
		t.Errorf("check error = %v, want ErrPayloadUnsupported", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version output = %q, want %q", out, version)
	}
}
