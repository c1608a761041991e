// Package config loads a Fiddler pipeline's YAML configuration: Handlebars
// {{NAME}} environment substitution, then YAML parsing into an ordered
// document, then per-plugin JSON-Schema validation.
//
// The env-substitution pass is grounded on Heka's EnvSub/%ENV[NAME]%
// mechanism (pipeline/config.go), adapted to Handlebars {{NAME}} syntax;
// the overall load shape (substitute, then parse, then validate) follows
// benthos's stream_builder.go AddYAML/lint pipeline.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/rc1405/fiddler/internal/ferrors"
)

// PluginRef is a single-key YAML object selecting a plugin, e.g.
// `{stdin: {}}` or `{fiddlerscript: {source: "..."}}`.
type PluginRef struct {
	Type   string
	Config map[string]any
}

// Type is Fiddler's top-level pipeline configuration: label?, num_threads?,
// input, processors?, output, metrics?.
type Type struct {
	Label      string
	NumThreads int
	Input      PluginRef
	Processors []PluginRef
	Output     PluginRef
	Metrics    *MetricsConfig
	Dedup      *DedupConfig
}

// MetricsConfig configures the metrics publisher.
type MetricsConfig struct {
	Type          string // "none" or "stdout"; any other value, "prometheus" included, publishes to stdout (pipeline.StartMetricsPublisher)
	IntervalSecs  int
}

// DedupConfig configures per-stream fingerprint-based deduplication in the
// tracker. Left nil (not just zero-value) when the config omits "dedup"
// entirely, so callers can tell "disabled" apart from "unconfigured".
type DedupConfig struct {
	Enabled bool
	// MetadataKeys are hashed alongside the payload bytes to compute each
	// message's dedup fingerprint (message.Fingerprint).
	MetadataKeys []string
	// MaxSeen bounds the per-stream fingerprint set. Default handled by
	// tracker.Options.withDefaults.
	MaxSeen int
}

var envPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// SubstituteEnv replaces every {{NAME}} occurrence in src with the value of
// the environment variable NAME (empty string if unset). Substitution is
// applied to every scalar before schema validation.
func SubstituteEnv(src []byte) []byte {
	return envPattern.ReplaceAllFunc(src, func(m []byte) []byte {
		sub := envPattern.FindSubmatch(m)
		name := string(sub[1])
		return []byte(os.Getenv(name))
	})
}

// Load reads, substitutes, and parses a pipeline config file. Plugin
// sub-documents are NOT schema-validated here; that happens at Build time
// once the relevant registry is known (internal/pipeline).
func Load(path string) (*Type, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "reading config %s", path)
	}
	return Parse(SubstituteEnv(raw))
}

// LoadRawDoc reads and env-substitutes a config file the same way Load
// does, but stops short of building a Type - it hands back the raw
// document so a caller can inspect or patch individual fields by dot-path
// (DotGet/DotSet) before parsing, e.g. lint's per-field error reporting or
// the test harness's fixture-driven config overrides.
func LoadRawDoc(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "reading config %s", path)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(SubstituteEnv(raw), &doc); err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "parsing YAML")
	}
	return doc, nil
}

// Parse parses already-substituted YAML bytes into a Type.
func Parse(src []byte) (*Type, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "parsing YAML")
	}
	return ParseDoc(doc)
}

// ParseDoc builds a Type from an already-unmarshalled document. Shared by
// Parse and by callers that construct or patch a document directly
// (config.DotSet) instead of re-marshalling YAML.
func ParseDoc(doc map[string]any) (*Type, error) {
	t := &Type{NumThreads: 0}
	if label, ok := doc["label"].(string); ok {
		t.Label = label
	}
	if nt, ok := doc["num_threads"].(int); ok {
		t.NumThreads = nt
	}

	input, ok := doc["input"]
	if !ok {
		return nil, ferrors.New(ferrors.KindConfig, "config missing required key 'input'")
	}
	ref, err := parsePluginRef(input)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "input")
	}
	t.Input = ref

	output, ok := doc["output"]
	if !ok {
		return nil, ferrors.New(ferrors.KindConfig, "config missing required key 'output'")
	}
	ref, err = parsePluginRef(output)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "output")
	}
	t.Output = ref

	if procsRaw, ok := doc["processors"]; ok {
		procs, ok := procsRaw.([]any)
		if !ok {
			return nil, ferrors.New(ferrors.KindConfig, "'processors' must be a list")
		}
		for i, p := range procs {
			ref, err := parsePluginRef(p)
			if err != nil {
				return nil, ferrors.Wrap(ferrors.KindConfig, err, "processors[%d]", i)
			}
			t.Processors = append(t.Processors, ref)
		}
	}

	if mRaw, ok := doc["metrics"]; ok {
		mc, err := parseMetrics(mRaw)
		if err != nil {
			return nil, err
		}
		t.Metrics = mc
	}

	if dRaw, ok := doc["dedup"]; ok {
		dc, err := parseDedup(dRaw)
		if err != nil {
			return nil, err
		}
		t.Dedup = dc
	}

	return t, nil
}

func parsePluginRef(raw any) (PluginRef, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return PluginRef{}, fmt.Errorf("expected a single-key object, got %T", raw)
	}
	if len(m) != 1 {
		return PluginRef{}, fmt.Errorf("expected exactly one plugin key, got %d", len(m))
	}
	for k, v := range m {
		sub, _ := v.(map[string]any)
		if sub == nil {
			sub = map[string]any{}
		}
		return PluginRef{Type: k, Config: sub}, nil
	}
	return PluginRef{}, fmt.Errorf("unreachable")
}

func parseMetrics(raw any) (*MetricsConfig, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, ferrors.New(ferrors.KindConfig, "'metrics' must be an object")
	}
	mc := &MetricsConfig{Type: "none", IntervalSecs: 300}
	if len(m) != 1 {
		return nil, ferrors.New(ferrors.KindConfig, "'metrics' must select exactly one publisher type")
	}
	for k, v := range m {
		mc.Type = k
		if sub, ok := v.(map[string]any); ok {
			if iv, ok := sub["interval_secs"].(int); ok {
				mc.IntervalSecs = iv
			}
		}
	}
	return mc, nil
}

// parseDedup parses the top-level "dedup" key: enabled?, metadata_keys?,
// max_seen?.
func parseDedup(raw any) (*DedupConfig, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, ferrors.New(ferrors.KindConfig, "'dedup' must be an object")
	}
	dc := &DedupConfig{}
	if en, ok := m["enabled"].(bool); ok {
		dc.Enabled = en
	}
	if keysRaw, ok := m["metadata_keys"].([]any); ok {
		for _, k := range keysRaw {
			if s, ok := k.(string); ok {
				dc.MetadataKeys = append(dc.MetadataKeys, s)
			}
		}
	}
	if ms, ok := m["max_seen"].(int); ok {
		dc.MaxSeen = ms
	}
	return dc, nil
}
