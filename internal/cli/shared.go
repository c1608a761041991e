package cli

import (
	"io"

	"github.com/rc1405/fiddler/internal/config"
	"github.com/rc1405/fiddler/internal/log"
	"github.com/rc1405/fiddler/internal/pipeline"
)

// buildExecutor validates cfg against the plugin registries and
// constructs (but does not Open or Run) an Executor. Plugin constructors
// never dial out - connections happen in Open - so this is safe to call
// from `lint` without side effects.
func buildExecutor(cfg *config.Type) (*pipeline.Executor, error) {
	return pipeline.Build(cfg, log.New(io.Discard, "error"))
}
