package config

import (
	"github.com/Jeffail/gabs/v2"
)

// DotGet retrieves a value from a raw config document by dot-path. Used by
// the `lint` command (internal/cli/lint.go) to report which field's raw
// sub-document produced a registry build failure. Grounded on
// stream_builder.go's SetFields/gabs-based config patching.
func DotGet(doc map[string]any, dotPath string) (any, bool) {
	g, err := gabs.Consume(doc)
	if err != nil {
		return nil, false
	}
	v := g.Path(dotPath)
	if v == nil || v.Data() == nil {
		return nil, false
	}
	return v.Data(), true
}

// DotSet writes a value into a raw config document by dot-path. Used by
// the test harness (internal/testharness) to apply a fixture's field
// overrides to a loaded config's document before re-parsing it, so a
// fixture can patch one processor's setting without duplicating the whole
// pipeline config.
func DotSet(doc map[string]any, dotPath string, value any) (map[string]any, error) {
	g, err := gabs.Consume(doc)
	if err != nil {
		return nil, err
	}
	if _, err := g.SetP(value, dotPath); err != nil {
		return nil, err
	}
	out, ok := g.Data().(map[string]any)
	if !ok {
		return doc, nil
	}
	return out, nil
}
