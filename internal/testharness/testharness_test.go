package testharness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rc1405/fiddler/internal/config"
)

func TestRunPassesWhenOutputsMatchAsMultiset(t *testing.T) {
	cfg := &config.Type{
		Processors: []config.PluginRef{{Type: "noop", Config: map[string]any{}}},
	}
	fixture := &Fixture{
		Name:            "passthrough",
		Inputs:          []string{"b", "a"},
		ExpectedOutputs: []string{"a", "b"},
	}

	res, err := Run(context.Background(), "", cfg, fixture)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Pass {
		t.Fatalf("expected pass (multiset match regardless of order), got %+v", res)
	}
}

func TestRunFailsOnMismatch(t *testing.T) {
	cfg := &config.Type{
		Processors: []config.PluginRef{{Type: "noop", Config: map[string]any{}}},
	}
	fixture := &Fixture{
		Name:            "mismatch",
		Inputs:          []string{"a"},
		ExpectedOutputs: []string{"b"},
	}

	res, err := Run(context.Background(), "", cfg, fixture)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Pass {
		t.Fatalf("expected failure on payload mismatch")
	}
}

func TestRunAppliesFixtureOverridesBeforeBuildingChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	body := "input:\n  stdin: {}\nprocessors:\n  - filter:\n      condition: \"`true`\"\noutput:\n  drop: {}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	fixture := &Fixture{
		Name:            "override-condition",
		Inputs:          []string{"{}"},
		ExpectedOutputs: []string{},
		Overrides: map[string]any{
			"processors.0.filter.condition": "`false`",
		},
	}

	res, err := Run(context.Background(), path, cfg, fixture)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Pass {
		t.Fatalf("expected the overridden condition to filter the message, got %+v", res)
	}
}

func TestFixturePathDerivesSiblingName(t *testing.T) {
	got := FixturePath("pipelines/echo.yaml")
	want := "pipelines/echo_test.yaml"
	if got != want {
		t.Fatalf("FixturePath(%q) = %q, want %q", "pipelines/echo.yaml", got, want)
	}
}
