package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// Scheme identifies the kind of a strategy.
type Scheme string

const (
	SchemeTicket Scheme = "ticket-delegated"
	SchemeHMAC   Scheme = "hmac-signed"
	SchemeURI    Scheme = "uri-signed"
	SchemeStatic Scheme = "static-credential"
	SchemeCookie Scheme = "encrypted-cookie"
	SchemeCustom Scheme = "custom"
)

// BuiltinSchemes lists the schemes that are constructed from settings.
var BuiltinSchemes = []Scheme{SchemeTicket, SchemeHMAC, SchemeURI, SchemeStatic, SchemeCookie}

// Builtin reports whether s is one of the built-in scheme tags.
func (s Scheme) Builtin() bool {
	switch s {
	case SchemeTicket, SchemeHMAC, SchemeURI, SchemeStatic, SchemeCookie:
		return true
	}
	return false
}

// DefaultStrategyName is used for a strategy registered through the
// single-strategy batch shape and for routes that name no strategy.
const DefaultStrategyName = "default"

// ErrRegistrySealed is returned by Add once a Dispatcher has taken
// ownership of the registry.
var ErrRegistrySealed = errors.New("strategy registry is sealed")

// Constructor builds a strategy of a built-in scheme from its options.
type Constructor func(name string, opts StrategyOptions) (Strategy, error)

// StrategyOptions configures one strategy registration.
type StrategyOptions struct {
	Scheme Scheme `yaml:"scheme"`

	// Default marks the strategy as required by default: routes that
	// declare no auth config use it with mode required.
	Default bool `yaml:"default"`

	// Implementation is the strategy for SchemeCustom.
	Implementation Strategy `yaml:"-"`

	// Settings are scheme-specific and decoded by the constructor.
	Settings yaml.Node `yaml:"settings"`
}

// DecodeSettings decodes the scheme-specific settings into v. Absent
// settings leave v unchanged.
func (o StrategyOptions) DecodeSettings(v any) error {
	if o.Settings.Kind == 0 {
		return nil
	}
	if err := o.Settings.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOptions, err)
	}
	return nil
}

// Settings encodes v as strategy settings. It is the programmatic
// counterpart of the YAML settings block.
func Settings(v any) yaml.Node {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		panic(fmt.Sprintf("auth: encoding settings: %v", err))
	}
	return n
}

type registered struct {
	name     string
	scheme   Scheme
	strategy Strategy
	caps     Capabilities
}

// Registry owns the named strategies. It is built before request traffic
// begins and is read-only afterwards, so concurrent pipelines read it
// without locking.
type Registry struct {
	constructors map[Scheme]Constructor
	strategies   map[string]*registered
	order        []*registered
	defaultName  string
	sealed       bool
}

// NewRegistry creates an empty registry that builds built-in schemes with
// the given constructors.
func NewRegistry(constructors map[Scheme]Constructor) *Registry {
	return &Registry{
		constructors: constructors,
		strategies:   make(map[string]*registered),
	}
}

// Add registers a strategy under name.
func (r *Registry) Add(name string, opts StrategyOptions) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if name == "" {
		return ErrEmptyName
	}
	if _, ok := r.strategies[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateStrategy, name)
	}
	if opts.Settings.Kind != 0 && opts.Settings.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: settings of %q must be a mapping", ErrMalformedOptions, name)
	}
	if opts.Default && r.defaultName != "" {
		return fmt.Errorf("%w: %q, cannot make %q the default", ErrDefaultConflict, r.defaultName, name)
	}

	scheme := opts.Scheme
	if scheme == "" && opts.Implementation != nil {
		scheme = SchemeCustom
	}

	var strategy Strategy
	switch {
	case scheme == SchemeCustom:
		if opts.Implementation == nil {
			return fmt.Errorf("%w: %q", ErrMissingImpl, name)
		}
		strategy = opts.Implementation
	case scheme.Builtin():
		if opts.Implementation != nil {
			return fmt.Errorf("%w: %q sets both scheme %q and an implementation", ErrMalformedOptions, name, scheme)
		}
		ctor, ok := r.constructors[scheme]
		if !ok {
			return fmt.Errorf("%w: %q has no constructor", ErrUnknownScheme, scheme)
		}
		s, err := ctor(name, opts)
		if err != nil {
			return fmt.Errorf("building strategy %q: %w", name, err)
		}
		strategy = s
	default:
		return fmt.Errorf("%w: %q for strategy %q", ErrUnknownScheme, scheme, name)
	}

	reg := &registered{
		name:     name,
		scheme:   scheme,
		strategy: strategy,
		caps:     capabilitiesOf(strategy),
	}
	r.strategies[name] = reg
	r.order = append(r.order, reg)
	if opts.Default {
		r.defaultName = name
	}

	slog.Debug("strategy registered",
		"name", name,
		"scheme", string(scheme),
		"default", opts.Default,
		"payload", reg.caps.Payload,
		"response", reg.caps.Response,
		"extend", reg.caps.Extend,
	)
	return nil
}

// AddBatch registers either one anonymous strategy under
// DefaultStrategyName or a list of named strategies. An empty batch is a
// no-op.
func (r *Registry) AddBatch(b Batch) error {
	if b.Default != nil && len(b.Strategies) > 0 {
		return ErrBatchShape
	}
	if b.Default != nil {
		return r.Add(DefaultStrategyName, *b.Default)
	}
	for _, ns := range b.Strategies {
		if err := r.Add(ns.Name, ns.Options); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the strategy registered under name and its capabilities.
func (r *Registry) Lookup(name string) (Strategy, Capabilities, bool) {
	reg, ok := r.strategies[name]
	if !ok {
		return nil, Capabilities{}, false
	}
	return reg.strategy, reg.caps, true
}

// DefaultStrategy returns the name of the strategy required by default, or
// the empty string.
func (r *Registry) DefaultStrategy() string {
	return r.defaultName
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, reg := range r.order {
		names[i] = reg.name
	}
	return names
}

// extenders returns the strategies that extend requests, in registration
// order.
func (r *Registry) extenders() []RequestExtender {
	var out []RequestExtender
	for _, reg := range r.order {
		if reg.caps.Extend {
			out = append(out, reg.strategy.(RequestExtender))
		}
	}
	return out
}

func (r *Registry) seal() {
	r.sealed = true
}

// NamedStrategy is one entry of a named batch.
type NamedStrategy struct {
	Name    string
	Options StrategyOptions
}

// Batch is the bulk registration input. Exactly one of the two shapes is
// used: a single anonymous strategy, or an ordered list of named ones.
type Batch struct {
	Default    *StrategyOptions
	Strategies []NamedStrategy
}

var optionKeys = map[string]bool{"scheme": true, "default": true, "settings": true}

// UnmarshalYAML detects the batch shape. A mapping with a scheme key is a
// single strategy; otherwise every key names a strategy.
func (b *Batch) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: strategies must be a mapping", ErrMalformedOptions)
	}

	single := false
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == "scheme" {
			single = true
		}
	}

	if single {
		for i := 0; i < len(node.Content); i += 2 {
			key, val := node.Content[i].Value, node.Content[i+1]
			if !optionKeys[key] {
				if val.Kind == yaml.MappingNode {
					return ErrBatchShape
				}
				return fmt.Errorf("%w: unknown option %q", ErrMalformedOptions, key)
			}
		}
		var opts StrategyOptions
		if err := node.Decode(&opts); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedOptions, err)
		}
		b.Default = &opts
		return nil
	}

	for i := 0; i < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		if val.Kind != yaml.MappingNode {
			return fmt.Errorf("%w: strategy %q must be a mapping", ErrMalformedOptions, key)
		}
		var opts StrategyOptions
		if err := val.Decode(&opts); err != nil {
			return fmt.Errorf("%w: strategy %q: %v", ErrMalformedOptions, key, err)
		}
		b.Strategies = append(b.Strategies, NamedStrategy{Name: key, Options: opts})
	}
	return nil
}

// Empty reports whether the batch registers nothing.
func (b Batch) Empty() bool {
	return b.Default == nil && len(b.Strategies) == 0
}
