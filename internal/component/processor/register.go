package processor

import "github.com/rc1405/fiddler/internal/component"

func init() {
	Registry.Register(component.Spec[component.Processor]{
		Name:        "noop",
		Summary:     "Passes every message through unchanged.",
		Constructor: NewNoopProcessor,
	})
	Registry.Register(component.Spec[component.Processor]{
		Name:        "lines",
		Summary:     "Splits a message's payload on newlines, one message per non-empty line.",
		Constructor: NewLinesProcessor,
	})
	Registry.Register(component.Spec[component.Processor]{
		Name:    "compress",
		Summary: "Compresses the payload with gzip, zlib or deflate.",
		Schema: `{
			"type": "object",
			"properties": {"codec": {"type": "string", "enum": ["gzip", "zlib", "deflate"]}}
		}`,
		Constructor: NewCompressProcessor,
	})
	Registry.Register(component.Spec[component.Processor]{
		Name:    "decompress",
		Summary: "Decompresses the payload with gzip, zlib or deflate.",
		Schema: `{
			"type": "object",
			"properties": {"codec": {"type": "string", "enum": ["gzip", "zlib", "deflate"]}}
		}`,
		Constructor: NewDecompressProcessor,
	})
	Registry.Register(component.Spec[component.Processor]{
		Name:    "decode",
		Summary: "Transcodes the payload; currently supports base64.",
		Schema: `{
			"type": "object",
			"properties": {"encoding": {"type": "string", "enum": ["base64"]}}
		}`,
		Constructor: NewDecodeProcessor,
	})
	Registry.Register(component.Spec[component.Processor]{
		Name:    "fiddlerscript",
		Summary: "Runs a compiled FiddlerScript program against each message.",
		Schema: `{
			"type": "object",
			"properties": {"source": {"type": "string"}},
			"required": ["source"]
		}`,
		Constructor: NewFiddlerScriptProcessor,
	})
	Registry.Register(component.Spec[component.Processor]{
		Name:    "filter",
		Summary: "Drops messages for which a JMESPath condition evaluates false.",
		Schema: `{
			"type": "object",
			"properties": {"condition": {"type": "string"}},
			"required": ["condition"]
		}`,
		Constructor: NewFilterProcessorConfig,
	})
	Registry.Register(component.Spec[component.Processor]{
		Name:    "switch",
		Summary: "Runs the first case's processor whose condition matches.",
		Schema: `{
			"type": "object",
			"properties": {
				"cases": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"condition": {"type": "string"},
							"processor": {"type": "object"}
						}
					}
				}
			},
			"required": ["cases"]
		}`,
		Constructor: NewSwitchProcessorConfig,
	})
	Registry.Register(component.Spec[component.Processor]{
		Name:    "try",
		Summary: "Runs 'processor'; on failure other than a conditional check, runs 'catch'.",
		Schema: `{
			"type": "object",
			"properties": {
				"processor": {"type": "object"},
				"catch": {"type": "object"}
			},
			"required": ["processor"]
		}`,
		Constructor: NewTryProcessorConfig,
	})
	Registry.Register(component.Spec[component.Processor]{
		Name:    "transform",
		Summary: "Rebuilds a JSON document from JMESPath-selected source/target mappings.",
		Schema: `{
			"type": "object",
			"properties": {
				"mappings": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"source": {"type": "string"},
							"target": {"type": "string"}
						},
						"required": ["source", "target"]
					}
				}
			},
			"required": ["mappings"]
		}`,
		Constructor: NewTransformProcessorConfig,
	})
}
