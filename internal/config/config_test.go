package config

import (
	"os"
	"testing"
)

func TestSubstituteEnvReplacesKnownAndUnknownNames(t *testing.T) {
	os.Setenv("FIDDLER_TEST_VAR", "bar")
	defer os.Unsetenv("FIDDLER_TEST_VAR")

	got := SubstituteEnv([]byte("foo: {{FIDDLER_TEST_VAR}}, missing: {{FIDDLER_TEST_UNSET}}"))
	want := "foo: bar, missing: "
	if string(got) != want {
		t.Fatalf("SubstituteEnv = %q, want %q", got, want)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
input:
  stdin: {}
output:
  stdout: {}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Input.Type != "stdin" {
		t.Fatalf("Input.Type = %q, want 'stdin'", cfg.Input.Type)
	}
	if cfg.Output.Type != "stdout" {
		t.Fatalf("Output.Type = %q, want 'stdout'", cfg.Output.Type)
	}
	if len(cfg.Processors) != 0 {
		t.Fatalf("expected no processors, got %d", len(cfg.Processors))
	}
}

func TestParseRequiresInputAndOutput(t *testing.T) {
	if _, err := Parse([]byte(`output: {stdout: {}}`)); err == nil {
		t.Fatalf("expected an error when 'input' is missing")
	}
	if _, err := Parse([]byte(`input: {stdin: {}}`)); err == nil {
		t.Fatalf("expected an error when 'output' is missing")
	}
}

func TestParseProcessorsAndPluginRefConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
input:
  stdin: {}
processors:
  - filter:
      condition: "status == 'ok'"
  - noop: {}
output:
  stdout: {}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Processors) != 2 {
		t.Fatalf("expected 2 processors, got %d", len(cfg.Processors))
	}
	if cfg.Processors[0].Type != "filter" {
		t.Fatalf("Processors[0].Type = %q, want 'filter'", cfg.Processors[0].Type)
	}
	cond, _ := cfg.Processors[0].Config["condition"].(string)
	if cond != "status == 'ok'" {
		t.Fatalf("Processors[0].Config['condition'] = %q", cond)
	}
}

func TestParsePluginRefRejectsMultipleKeys(t *testing.T) {
	_, err := Parse([]byte(`
input:
  stdin: {}
  file: {}
output:
  stdout: {}
`))
	if err == nil {
		t.Fatalf("expected an error for a plugin ref with more than one key")
	}
}

func TestParseMetricsDefaultsAndOverride(t *testing.T) {
	cfg, err := Parse([]byte(`
input:
  stdin: {}
output:
  stdout: {}
metrics:
  stdout:
    interval_secs: 5
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Metrics == nil {
		t.Fatalf("expected metrics to be set")
	}
	if cfg.Metrics.Type != "stdout" || cfg.Metrics.IntervalSecs != 5 {
		t.Fatalf("Metrics = %+v, want {stdout 5}", cfg.Metrics)
	}
}

func TestParseDedupAbsentLeavesFieldNil(t *testing.T) {
	cfg, err := Parse([]byte(`
input:
  stdin: {}
output:
  stdout: {}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Dedup != nil {
		t.Fatalf("expected Dedup to stay nil when 'dedup' is omitted, got %+v", cfg.Dedup)
	}
}

func TestParseDedupEnabledWithMetadataKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
input:
  stdin: {}
output:
  stdout: {}
dedup:
  enabled: true
  metadata_keys: ["trace_id", "source"]
  max_seen: 128
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Dedup == nil {
		t.Fatalf("expected Dedup to be set")
	}
	if !cfg.Dedup.Enabled {
		t.Fatalf("expected Dedup.Enabled = true")
	}
	if cfg.Dedup.MaxSeen != 128 {
		t.Fatalf("Dedup.MaxSeen = %d, want 128", cfg.Dedup.MaxSeen)
	}
	want := []string{"trace_id", "source"}
	if len(cfg.Dedup.MetadataKeys) != len(want) {
		t.Fatalf("Dedup.MetadataKeys = %v, want %v", cfg.Dedup.MetadataKeys, want)
	}
	for i, k := range want {
		if cfg.Dedup.MetadataKeys[i] != k {
			t.Fatalf("Dedup.MetadataKeys[%d] = %q, want %q", i, cfg.Dedup.MetadataKeys[i], k)
		}
	}
}

func TestParseMetricsRejectsMultiplePublishers(t *testing.T) {
	_, err := Parse([]byte(`
input:
  stdin: {}
output:
  stdout: {}
metrics:
  stdout: {}
  prometheus: {}
`))
	if err == nil {
		t.Fatalf("expected an error when 'metrics' selects more than one publisher")
	}
}
