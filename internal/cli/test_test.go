package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfigAndFixture(t *testing.T, configBody, fixtureBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(path, []byte(configBody), 0o644); err != nil {
		t.Fatalf("WriteFile config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pipeline_test.yaml"), []byte(fixtureBody), 0o644); err != nil {
		t.Fatalf("WriteFile fixture: %v", err)
	}
	return path
}

func TestRunTestsPassesOnMatchingFixture(t *testing.T) {
	path := writeTempConfigAndFixture(t,
		"input:\n  stdin: {}\nprocessors:\n  - noop: {}\noutput:\n  drop: {}\n",
		"name: passthrough\ninputs: [\"a\", \"b\"]\nexpected_outputs: [\"b\", \"a\"]\n",
	)
	if err := runTests([]string{path}); err != nil {
		t.Fatalf("runTests: %v", err)
	}
}

func TestRunTestsReportsTestFailedOnMismatch(t *testing.T) {
	path := writeTempConfigAndFixture(t,
		"input:\n  stdin: {}\nprocessors:\n  - noop: {}\noutput:\n  drop: {}\n",
		"name: mismatch\ninputs: [\"a\"]\nexpected_outputs: [\"b\"]\n",
	)
	err := runTests([]string{path})
	if err == nil {
		t.Fatalf("expected runTests to report a failure on fixture mismatch")
	}
	ce, ok := err.(*cliError)
	if !ok {
		t.Fatalf("expected a *cliError, got %T", err)
	}
	if ce.code != ExitTestFailed {
		t.Fatalf("exit code = %d, want %d", ce.code, ExitTestFailed)
	}
}

func TestRunTestsFailsWhenFixtureMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(path, []byte("input:\n  stdin: {}\noutput:\n  drop: {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err := runTests([]string{path})
	if err == nil {
		t.Fatalf("expected runTests to fail when the sibling fixture file is missing")
	}
	ce, ok := err.(*cliError)
	if !ok {
		t.Fatalf("expected a *cliError, got %T", err)
	}
	if ce.code != ExitConfigInvalid {
		t.Fatalf("exit code = %d, want %d", ce.code, ExitConfigInvalid)
	}
}
