// Package output holds the global Output plugin registry and the built-in
// output plugins (stdout, drop, switch, http, redis).
package output

import (
	"github.com/rc1405/fiddler/internal/component"
)

// Registry is the process-wide Output plugin registry.
var Registry = component.NewRegistry[component.Output]()
