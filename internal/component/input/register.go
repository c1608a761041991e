package input

import "github.com/rc1405/fiddler/internal/component"

func init() {
	Registry.Register(component.Spec[component.Input]{
		Name:        "stdin",
		Summary:     "Reads newline-delimited messages from process stdin.",
		Constructor: NewStdinInput,
	})
	Registry.Register(component.Spec[component.Input]{
		Name:    "file",
		Summary: "Tails a file, persisting read offset to a position file on ack.",
		Schema: `{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"position_file": {"type": "string"},
				"poll_ms": {"type": "integer"}
			},
			"required": ["path"]
		}`,
		Constructor: NewFileInput,
	})
	Registry.Register(component.Spec[component.Input]{
		Name:    "http_server",
		Summary: "Accepts one message per POST request body.",
		Schema: `{
			"type": "object",
			"properties": {
				"address": {"type": "string"},
				"path": {"type": "string"},
				"acknowledgment": {"type": "boolean"}
			}
		}`,
		Constructor: NewHTTPServerInput,
	})
	Registry.Register(component.Spec[component.Input]{
		Name:    "redis",
		Summary: "Pops messages from a Redis list with BLPOP.",
		Schema: `{
			"type": "object",
			"properties": {
				"address": {"type": "string"},
				"key": {"type": "string"},
				"db": {"type": "integer"}
			},
			"required": ["key"]
		}`,
		Constructor: NewRedisInput,
	})
}
