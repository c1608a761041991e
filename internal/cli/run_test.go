package cli

import "testing"

func TestRunPipelinesFailsFastOnInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, "input:\n  bogus: {}\noutput:\n  drop: {}\n")

	err := runPipelines([]string{path}, "error")
	if err == nil {
		t.Fatalf("expected runPipelines to fail fast on an invalid config")
	}
	ce, ok := err.(*cliError)
	if !ok {
		t.Fatalf("expected a *cliError, got %T", err)
	}
	if ce.code != ExitConfigInvalid {
		t.Fatalf("exit code = %d, want %d", ce.code, ExitConfigInvalid)
	}
}

func TestRunPipelinesFailsFastOnMissingConfigFile(t *testing.T) {
	err := runPipelines([]string{"/nonexistent/pipeline.yaml"}, "error")
	if err == nil {
		t.Fatalf("expected runPipelines to fail when a config path doesn't exist")
	}
	ce, ok := err.(*cliError)
	if !ok {
		t.Fatalf("expected a *cliError, got %T", err)
	}
	if ce.code != ExitConfigInvalid {
		t.Fatalf("exit code = %d, want %d", ce.code, ExitConfigInvalid)
	}
}
