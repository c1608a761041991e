// Package processor holds the global Processor plugin registry and the
// built-in processor plugins (noop, lines, filter, switch, try, transform,
// fiddlerscript, compress, decompress, decode).
package processor

import (
	"github.com/rc1405/fiddler/internal/component"
)

// Registry is the process-wide Processor plugin registry.
var Registry = component.NewRegistry[component.Processor]()
