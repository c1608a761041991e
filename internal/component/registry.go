package component

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/rc1405/fiddler/internal/ferrors"
)

// Spec is what a plugin registers at startup: a name (the YAML tag), a
// JSON-Schema describing its configuration, and a constructor. Each of the
// three capability registries below is a Spec[T] instantiation.
type Spec[T any] struct {
	Name        string
	Summary     string
	Schema      string // JSON-Schema document, or "" to skip validation
	Constructor func(config map[string]any) (T, error)
}

// Registry is a tagged-variant dispatch table keyed by YAML tag, following
// the pattern benthos's tracer.Config/FromAny establishes: a plugin's
// top-level config is a single-key object `{tag: {...fields...}}`, and the
// registry looks up the constructor for that tag.
type Registry[T any] struct {
	mu    sync.RWMutex
	specs map[string]Spec[T]
}

// NewRegistry returns an empty registry of capability T (Input, Processor,
// or Output).
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{specs: make(map[string]Spec[T])}
}

// Register installs a plugin spec. Called once per plugin at process
// startup (main.go / plugin package init); registration is process-wide
// and read-only thereafter — the registry is the only global mutable
// state, and it's written once during startup.
func (r *Registry[T]) Register(s Spec[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[s.Name] = s
}

// Lookup returns the spec registered under name.
func (r *Registry[T]) Lookup(name string) (Spec[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Names returns every registered plugin tag (used by `lint` diagnostics
// and doc generation).
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.specs))
	for n := range r.specs {
		out = append(out, n)
	}
	return out
}

// Build validates config against the named plugin's schema (if any) and
// invokes its constructor. config is the plugin's own sub-document (the
// value under its tag key, not the {tag: {...}} wrapper).
func (r *Registry[T]) Build(name string, config map[string]any) (T, error) {
	var zero T
	spec, ok := r.Lookup(name)
	if !ok {
		return zero, ferrors.New(ferrors.KindConfig, "unknown plugin %q", name)
	}
	if spec.Schema != "" {
		if err := validateSchema(spec.Schema, config); err != nil {
			return zero, ferrors.Wrap(ferrors.KindConfig, err, "invalid configuration for %q", name)
		}
	}
	v, err := spec.Constructor(config)
	if err != nil {
		return zero, ferrors.Wrap(ferrors.KindConfig, err, "constructing %q", name)
	}
	return v, nil
}

func validateSchema(schema string, config map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewGoLoader(config)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation failed: %v", msgs)
	}
	return nil
}
