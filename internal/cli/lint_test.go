package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLintOneAcceptsValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
input:
  stdin: {}
output:
  drop: {}
`)
	if err := lintOne(path); err != nil {
		t.Fatalf("lintOne: %v", err)
	}
}

func TestLintOneRejectsUnknownPluginType(t *testing.T) {
	path := writeTempConfig(t, `
input:
  not_a_real_input: {}
output:
  drop: {}
`)
	if err := lintOne(path); err == nil {
		t.Fatalf("expected lintOne to reject an unregistered plugin type")
	}
}

func TestRunLintReturnsConfigInvalidWhenAnyPathFails(t *testing.T) {
	good := writeTempConfig(t, "input:\n  stdin: {}\noutput:\n  drop: {}\n")
	bad := writeTempConfig(t, "input:\n  bogus: {}\noutput:\n  drop: {}\n")

	err := runLint([]string{good, bad})
	if err == nil {
		t.Fatalf("expected runLint to report failure when one config is invalid")
	}
	ce, ok := err.(*cliError)
	if !ok {
		t.Fatalf("expected a *cliError, got %T", err)
	}
	if ce.code != ExitConfigInvalid {
		t.Fatalf("exit code = %d, want %d", ce.code, ExitConfigInvalid)
	}
}

func TestLintOneAnnotatesErrorWithOffendingField(t *testing.T) {
	path := writeTempConfig(t, `
input:
  stdin: {}
processors:
  - not_a_real_processor: {}
output:
  drop: {}
`)
	err := lintOne(path)
	if err == nil {
		t.Fatalf("expected lintOne to reject an unregistered processor type")
	}
	want := "processors.0"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("lintOne error = %q, want it to mention %q (the field DotGet located)", err.Error(), want)
	}
}

func TestRunLintSucceedsWhenAllPathsValid(t *testing.T) {
	good := writeTempConfig(t, "input:\n  stdin: {}\noutput:\n  drop: {}\n")
	if err := runLint([]string{good}); err != nil {
		t.Fatalf("runLint: %v", err)
	}
}
