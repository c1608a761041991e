package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rc1405/fiddler/internal/config"
	"github.com/rc1405/fiddler/internal/testharness"
)

var (
	testConfigPaths []string
	testLogLevel    string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run each config's sibling _test.yaml fixture through its processor chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTests(testConfigPaths)
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().StringArrayVarP(&testConfigPaths, "config", "c", nil, "pipeline config file (repeatable)")
	testCmd.Flags().StringVarP(&testLogLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = testCmd.MarkFlagRequired("config")
}

func runTests(paths []string) error {
	anyFailed := false
	for _, p := range paths {
		cfg, err := config.Load(p)
		if err != nil {
			return newCliError(ExitConfigInvalid, "%s: %v", p, err)
		}

		fixturePath := testharness.FixturePath(p)
		fixture, err := testharness.LoadFixture(fixturePath)
		if err != nil {
			return newCliError(ExitConfigInvalid, "%s: %v", fixturePath, err)
		}

		res, err := testharness.Run(context.Background(), p, cfg, fixture)
		if err != nil {
			return newCliError(ExitRuntimeError, "%s: %v", p, err)
		}

		if res.Pass {
			fmt.Fprintf(os.Stdout, "%s: PASS (%s)\n", fixture.Name, p)
			continue
		}
		anyFailed = true
		fmt.Fprintf(os.Stdout, "%s: FAIL (%s)\n  expected: %v\n  got:      %v\n", fixture.Name, p, res.Expected, res.Got)
	}
	if anyFailed {
		return newCliError(ExitTestFailed, "")
	}
	return nil
}
