// Package input holds the global Input plugin registry and the built-in
// input plugins (stdin, file, http_server, redis).
package input

import (
	"github.com/rc1405/fiddler/internal/component"
)

// Registry is the process-wide Input plugin registry. Populated by each
// plugin's init() and read-only after startup.
var Registry = component.NewRegistry[component.Input]()
