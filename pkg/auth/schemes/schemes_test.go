package schemes

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/authgate/pkg/auth"
	replaymem "github.com/rhuss/authgate/pkg/replay/memory"
	"github.com/rhuss/authgate/pkg/storage"
	"github.com/rhuss/authgate/pkg/storage/memory"
)

const batchYAML = `
api:
  scheme: hmac-signed
  default: true
  settings:
    timestamp_skew: 30s
links:
  scheme: uri-signed
  settings:
    single_use: true
tickets:
  scheme: ticket-delegated
  settings:
    secret: ticket-secret
    realm: api
basic:
  scheme: static-credential
keys:
  scheme: static-credential
  settings:
    mode: apikey
    keys:
      - key: k1
        app: app1
session:
  scheme: encrypted-cookie
  settings:
    password: password-should-be-32-characters!
`

func newDeps(t *testing.T) Deps {
	t.Helper()
	store, err := memory.New([]storage.Credential{{ID: "id1", Key: "k"}})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return Deps{Credentials: store, Nonces: replaymem.New()}
}

func TestBuiltinCoversAllSchemes(t *testing.T) {
	ctors := Builtin(Deps{})
	for _, s := range auth.BuiltinSchemes {
		if _, ok := ctors[s]; !ok {
			t.Errorf("no constructor for %q", s)
		}
	}
}

func TestRegistryFromYAML(t *testing.T) {
	var b auth.Batch
	if err := yaml.Unmarshal([]byte(batchYAML), &b); err != nil {
		t.Fatalf("decoding batch: %v", err)
	}

	reg := NewRegistry(newDeps(t))
	if err := reg.AddBatch(b); err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	want := []string{"api", "links", "tickets", "basic", "keys", "session"}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if reg.DefaultStrategy() != "api" {
		t.Errorf("DefaultStrategy = %q, want api", reg.DefaultStrategy())
	}

	caps := map[string]auth.Capabilities{
		"api":     {Payload: true, Response: true},
		"links":   {},
		"tickets": {},
		"session": {Extend: true},
	}
	for name, want := range caps {
		_, got, ok := reg.Lookup(name)
		if !ok {
			t.Fatalf("%q not registered", name)
		}
		if got != want {
			t.Errorf("%q capabilities = %+v, want %+v", name, got, want)
		}
	}
}

func TestConstructorErrorsSurface(t *testing.T) {
	reg := NewRegistry(newDeps(t))

	var opts auth.StrategyOptions
	if err := yaml.Unmarshal([]byte("scheme: encrypted-cookie\nsettings:\n  password: short\n"), &opts); err != nil {
		t.Fatalf("decoding options: %v", err)
	}
	if err := reg.Add("session", opts); err == nil {
		t.Error("expected constructor error for short password")
	}
}

func TestMalformedSettings(t *testing.T) {
	reg := NewRegistry(newDeps(t))

	var opts auth.StrategyOptions
	if err := yaml.Unmarshal([]byte("scheme: hmac-signed\nsettings:\n  timestamp_skew: [1, 2]\n"), &opts); err != nil {
		t.Fatalf("decoding options: %v", err)
	}
	err := reg.Add("api", opts)
	if !errors.Is(err, auth.ErrMalformedOptions) {
		t.Errorf("expected ErrMalformedOptions, got %v", err)
	}
}

func TestSignedSchemesNeedStore(t *testing.T) {
	reg := NewRegistry(Deps{})

	if err := reg.Add("api", auth.StrategyOptions{Scheme: auth.SchemeHMAC}); err == nil {
		t.Error("expected error for hmac-signed without credential store")
	}
}
