// Package cli implements Fiddler's three subcommands: lint, run and
// test. Command wiring follows the cobra idiom seen in
// AltairaLabs-PromptKit's arena CLI (tools/arena/cmd/promptarena): a
// package-level rootCmd, one file per subcommand, each registering itself
// from its own init().
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitOK             = 0
	ExitConfigInvalid  = 1
	ExitTestFailed     = 2
	ExitRuntimeError   = 3
)

var rootCmd = &cobra.Command{
	Use:           "fiddler",
	Short:         "Configuration-driven stream processor",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code; main.go's only
// job is os.Exit(cli.Execute()).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if ce, ok := err.(*cliError); ok {
			if ce.msg != "" {
				fmt.Fprintln(os.Stderr, ce.msg)
			}
			return ce.code
		}
		fmt.Fprintln(os.Stderr, err)
		return ExitRuntimeError
	}
	return ExitOK
}

// cliError lets a subcommand's RunE carry a specific exit code back to
// Execute without cobra printing its own "Error:" preamble.
type cliError struct {
	code int
	msg  string
}

func (e *cliError) Error() string { return e.msg }

func newCliError(code int, format string, args ...any) error {
	return &cliError{code: code, msg: fmt.Sprintf(format, args...)}
}
