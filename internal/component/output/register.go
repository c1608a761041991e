package output

import "github.com/rc1405/fiddler/internal/component"

func init() {
	Registry.Register(component.Spec[component.Output]{
		Name:        "stdout",
		Summary:     "Writes each message's payload followed by a newline to stdout.",
		Constructor: NewStdoutOutput,
	})
	Registry.Register(component.Spec[component.Output]{
		Name:        "drop",
		Summary:     "Discards every message.",
		Constructor: NewDropOutput,
	})
	Registry.Register(component.Spec[component.Output]{
		Name:    "switch",
		Summary: "Routes each message to the first case whose condition matches.",
		Schema: `{
			"type": "object",
			"properties": {
				"cases": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"condition": {"type": "string"},
							"output": {"type": "object"}
						},
						"required": ["output"]
					}
				}
			},
			"required": ["cases"]
		}`,
		Constructor: NewOutputSwitchConfig,
	})
	Registry.Register(component.Spec[component.Output]{
		Name:    "http",
		Summary: "POSTs each message's payload to a fixed URL, retrying 429/5xx.",
		Schema: `{
			"type": "object",
			"properties": {
				"url": {"type": "string"},
				"timeout_ms": {"type": "integer"}
			},
			"required": ["url"]
		}`,
		Constructor: NewHTTPOutput,
	})
	Registry.Register(component.Spec[component.Output]{
		Name:    "redis",
		Summary: "Pushes each message's payload onto a Redis list with RPUSH.",
		Schema: `{
			"type": "object",
			"properties": {
				"address": {"type": "string"},
				"key": {"type": "string"},
				"db": {"type": "integer"}
			},
			"required": ["key"]
		}`,
		Constructor: NewRedisOutput,
	})
}
