package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rc1405/fiddler/internal/component/input"
	"github.com/rc1405/fiddler/internal/component/output"
	"github.com/rc1405/fiddler/internal/component/processor"
	"github.com/rc1405/fiddler/internal/config"
)

var lintConfigPaths []string

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate one or more pipeline configuration files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLint(lintConfigPaths)
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
	lintCmd.Flags().StringArrayVarP(&lintConfigPaths, "config", "c", nil, "pipeline config file (repeatable)")
	_ = lintCmd.MarkFlagRequired("config")
}

// runLint parses and registry-validates every path, printing one line per
// failure, and reports ExitConfigInvalid if any path failed.
func runLint(paths []string) error {
	failed := false
	for _, p := range paths {
		if err := lintOne(p); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			failed = true
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: OK\n", p)
	}
	if failed {
		return newCliError(ExitConfigInvalid, "")
	}
	return nil
}

func lintOne(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if _, err := buildExecutor(cfg); err != nil {
		return annotateFieldError(path, cfg, err)
	}
	return nil
}

// annotateFieldError re-runs cfg's input/processors/output through their
// registries one field at a time to find which one produced cause (the
// combined buildExecutor error doesn't carry that), then looks up the
// offending field's raw sub-document with config.DotGet so the reported
// error points at the exact config value instead of just the plugin's own
// message.
func annotateFieldError(path string, cfg *config.Type, cause error) error {
	raw, err := config.LoadRawDoc(path)
	if err != nil {
		return cause
	}

	if _, buildErr := input.Registry.Build(cfg.Input.Type, cfg.Input.Config); buildErr != nil {
		return withRawField(raw, "input", buildErr)
	}
	for i, ref := range cfg.Processors {
		if _, buildErr := processor.Registry.Build(ref.Type, ref.Config); buildErr != nil {
			return withRawField(raw, fmt.Sprintf("processors.%d", i), buildErr)
		}
	}
	if _, buildErr := output.Registry.Build(cfg.Output.Type, cfg.Output.Config); buildErr != nil {
		return withRawField(raw, "output", buildErr)
	}
	return cause
}

func withRawField(raw map[string]any, dotPath string, cause error) error {
	v, ok := config.DotGet(raw, dotPath)
	if !ok {
		return cause
	}
	return fmt.Errorf("%s (%v): %w", dotPath, v, cause)
}
