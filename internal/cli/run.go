package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rc1405/fiddler/internal/config"
	"github.com/rc1405/fiddler/internal/log"
	"github.com/rc1405/fiddler/internal/pipeline"
)

var (
	runConfigPaths []string
	runLogLevel    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one or more pipelines until stopped or the inputs are exhausted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipelines(runConfigPaths, runLogLevel)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVarP(&runConfigPaths, "config", "c", nil, "pipeline config file (repeatable)")
	runCmd.Flags().StringVarP(&runLogLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = runCmd.MarkFlagRequired("config")
}

// runPipelines loads and builds every config up front (so a single bad
// config fails fast, before any pipeline starts consuming input), then
// runs all of them concurrently until ctx is cancelled by SIGINT/SIGTERM
// or every input is exhausted.
func runPipelines(paths []string, level string) error {
	logger := log.New(os.Stderr, level)

	execs := make([]*pipeline.Executor, 0, len(paths))
	for _, p := range paths {
		cfg, err := config.Load(p)
		if err != nil {
			return newCliError(ExitConfigInvalid, "%s: %v", p, err)
		}
		ex, err := pipeline.Build(cfg, logger.With("config", p))
		if err != nil {
			return newCliError(ExitConfigInvalid, "%s: %v", p, err)
		}
		pipeline.StartMetricsPublisher(context.Background(), cfg.Metrics, ex.Metrics(), logger.With("config", p))
		execs = append(execs, ex)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	errs := make([]error, len(execs))
	for i, ex := range execs {
		wg.Add(1)
		go func(i int, ex *pipeline.Executor) {
			defer wg.Done()
			errs[i] = ex.Run(ctx)
		}(i, ex)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			logger.Error("pipeline exited with error", "config", paths[i], "error", err)
			return newCliError(ExitRuntimeError, "%s: %v", paths[i], err)
		}
	}
	return nil
}
