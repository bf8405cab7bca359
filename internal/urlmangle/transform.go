// Package urlmangle routes outbound request URLs through named rewrite
// transforms, e.g. intermediary HTTP gateways.
package urlmangle

import (
	"fmt"
	"sort"
)

// Transform rewrites one URL into another. Implementations must be pure and
// total: same input yields same output within a run, and application never
// blocks or fails.
type Transform func(url string) string

// Identity returns its input unchanged. It is the active transform when
// neither an override nor a default is configured.
func Identity(url string) string { return url }

// Registry maps transform names to transforms. It is populated once during
// configuration load and read-only afterwards.
type Registry struct {
	transforms  map[string]Transform
	defaultName string
}

func NewRegistry() *Registry {
	return &Registry{transforms: make(map[string]Transform)}
}

// Register adds a named transform. Duplicate names are a configuration error.
func (r *Registry) Register(name string, t Transform) error {
	if name == "" {
		return fmt.Errorf("transform name must not be empty")
	}
	if t == nil {
		return fmt.Errorf("transform %q is nil", name)
	}
	if _, exists := r.transforms[name]; exists {
		return fmt.Errorf("transform %q registered twice", name)
	}
	r.transforms[name] = t
	return nil
}

// SetDefault marks one registered transform as the run default. At most one
// default is allowed.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.transforms[name]; !ok {
		return fmt.Errorf("unknown default transform %q; known transforms are %v", name, r.Names())
	}
	if r.defaultName != "" && r.defaultName != name {
		return fmt.Errorf("default transform already set to %q", r.defaultName)
	}
	r.defaultName = name
	return nil
}

// Resolve picks the active transform for a run: the explicit override name
// if given, else the configured default, else the identity transform. An
// unknown override is a configuration error surfaced before any network
// activity begins.
func (r *Registry) Resolve(override string) (Transform, error) {
	name := override
	if name == "" {
		name = r.defaultName
	}
	if name == "" {
		return Identity, nil
	}
	t, ok := r.transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown url mangler %q; known manglers are %v", name, r.Names())
	}
	return t, nil
}

// Names lists registered transform names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultName reports the configured default transform name, if any.
func (r *Registry) DefaultName() string { return r.defaultName }
