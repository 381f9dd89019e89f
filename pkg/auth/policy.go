package auth

import (
	"fmt"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"gopkg.in/yaml.v3"
)

// Mode controls how strictly a route requires authentication.
type Mode string

const (
	// ModeRequired rejects the request unless a strategy authenticates it.
	ModeRequired Mode = "required"
	// ModeOptional lets requests without credentials through, but rejects
	// invalid credentials.
	ModeOptional Mode = "optional"
	// ModeTry lets every request through; invalid credentials leave it
	// unauthenticated.
	ModeTry Mode = "try"
)

// Entity restricts the principal kind of a session.
type Entity string

const (
	EntityAny  Entity = "any"
	EntityUser Entity = "user"
	EntityApp  Entity = "app"
)

// PayloadMode controls payload authentication for a route.
type PayloadMode string

const (
	PayloadOff      PayloadMode = "off"
	PayloadOptional PayloadMode = "optional"
	PayloadRequired PayloadMode = "required"
)

// OptionalInt is an integer whose presence is tracked separately from its
// value. A YAML null sets it present with value zero.
type OptionalInt struct {
	set bool
	v   int
}

// Some returns a present OptionalInt holding v.
func Some(v int) OptionalInt {
	return OptionalInt{set: true, v: v}
}

// Get returns the value and whether it is present.
func (o OptionalInt) Get() (int, bool) {
	return o.v, o.set
}

// String implements fmt.Stringer.
func (o OptionalInt) String() string {
	if !o.set {
		return "<unset>"
	}
	return strconv.Itoa(o.v)
}

// RouteOptions is the raw per-route auth configuration. In YAML it is
// false (disabled), a strategy name, or a mapping.
type RouteOptions struct {
	// Disabled turns authentication off for the route, even when a default
	// strategy is registered.
	Disabled bool `yaml:"-"`

	Mode       Mode        `yaml:"mode"`
	Entity     Entity      `yaml:"entity"`
	Payload    PayloadMode `yaml:"payload"`
	Strategy   string      `yaml:"strategy"`
	Strategies []string    `yaml:"strategies"`
	Scope      string      `yaml:"scope"`
	TOS        OptionalInt `yaml:"-"`
}

// UnmarshalYAML accepts false, true, a strategy name, or a mapping. The tos
// key is inspected directly so that an explicit null is kept as present.
func (o *RouteOptions) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!bool" {
			var enabled bool
			if err := node.Decode(&enabled); err != nil {
				return err
			}
			*o = RouteOptions{Disabled: !enabled}
			return nil
		}
		*o = RouteOptions{Strategy: node.Value}
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("%w: auth must be false, a strategy name or a mapping", ErrInvalidPolicy)
	}

	type plain RouteOptions
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	*o = RouteOptions(p)

	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value != "tos" {
			continue
		}
		val := node.Content[i+1]
		if val.Tag == "!!null" {
			o.TOS = Some(0)
			continue
		}
		var tos int
		if err := val.Decode(&tos); err != nil {
			return fmt.Errorf("%w: tos: %v", ErrInvalidPolicy, err)
		}
		o.TOS = Some(tos)
	}
	return nil
}

// Policy is a normalized, validated route auth policy.
type Policy struct {
	Mode       Mode
	Entity     Entity
	Payload    PayloadMode
	Strategies []string
	Scope      string
	TOS        OptionalInt
}

// Disabled is the policy of routes with authentication turned off.
var Disabled = &Policy{}

// Enabled reports whether the policy requires running the pipeline.
func (p *Policy) Enabled() bool {
	return p != nil && p != Disabled
}

func (o *RouteOptions) validate() error {
	err := validation.ValidateStruct(o,
		validation.Field(&o.Mode, validation.In(ModeRequired, ModeOptional, ModeTry)),
		validation.Field(&o.Entity, validation.In(EntityAny, EntityUser, EntityApp)),
		validation.Field(&o.Payload, validation.In(PayloadOff, PayloadOptional, PayloadRequired)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if o.Strategy != "" && len(o.Strategies) > 0 {
		return ErrStrategyConflict
	}
	return nil
}

// setupRoute normalizes opts against the registry. A nil opts means the
// route declares nothing and yields a nil policy, which Resolve replaces
// with the default strategy if one exists.
//
// Payload mode required is accepted only when every listed strategy can
// authenticate payloads, so the strategy that ends up bound to a request
// is always able to.
func setupRoute(reg *Registry, opts *RouteOptions) (*Policy, error) {
	if opts == nil {
		return nil, nil
	}
	if opts.Disabled {
		return Disabled, nil
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	p := &Policy{
		Mode:    opts.Mode,
		Entity:  opts.Entity,
		Payload: opts.Payload,
		Scope:   opts.Scope,
		TOS:     opts.TOS,
	}
	if p.Mode == "" {
		p.Mode = ModeRequired
	}
	if p.Entity == "" {
		p.Entity = EntityAny
	}
	if p.Payload == "" {
		p.Payload = PayloadOff
	}

	switch {
	case opts.Strategy != "":
		p.Strategies = []string{opts.Strategy}
	case len(opts.Strategies) > 0:
		p.Strategies = append([]string(nil), opts.Strategies...)
	default:
		p.Strategies = []string{DefaultStrategyName}
	}

	allPayload := true
	for _, name := range p.Strategies {
		_, caps, ok := reg.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
		}
		allPayload = allPayload && caps.Payload
	}
	if p.Payload == PayloadRequired && !allPayload {
		return nil, policyError(ErrPayloadUnsupported, "strategies %v", p.Strategies)
	}

	return p, nil
}

// resolve picks the policy that applies to a request on a route whose
// configured policy is route.
func resolve(reg *Registry, route *Policy) *Policy {
	if route == Disabled {
		return nil
	}
	if route != nil {
		return route
	}
	if name := reg.DefaultStrategy(); name != "" {
		return &Policy{
			Mode:       ModeRequired,
			Entity:     EntityAny,
			Payload:    PayloadOff,
			Strategies: []string{name},
		}
	}
	return nil
}
