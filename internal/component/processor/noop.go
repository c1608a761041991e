package processor

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/base64"
	"io"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/message"
)

// NoopProcessor passes every message through unchanged; useful as a
// placeholder branch in switch/try containers.
type NoopProcessor struct{}

func NewNoopProcessor(map[string]any) (component.Processor, error) { return &NoopProcessor{}, nil }

func (NoopProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	return component.ProcessResult{m}, nil
}

func (NoopProcessor) Close(context.Context) error { return nil }

// LinesProcessor splits a message's payload on newlines, emitting one
// derived message per non-empty line (fan-out).
type LinesProcessor struct{}

func NewLinesProcessor(map[string]any) (component.Processor, error) { return &LinesProcessor{}, nil }

func (LinesProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	parts := bytes.Split(m.Bytes, []byte("\n"))
	out := make(component.ProcessResult, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		child := m.Clone()
		child.Bytes = p
		out = append(out, child)
	}
	return out, nil
}

func (LinesProcessor) Close(context.Context) error { return nil }

// codec names accepted by compress/decompress/decode.
const (
	codecGzip    = "gzip"
	codecZlib    = "zlib"
	codecDeflate = "deflate"
)

// CompressProcessor compresses the payload with the configured codec.
type CompressProcessor struct{ codec string }

func NewCompressProcessor(cfg map[string]any) (component.Processor, error) {
	codec, _ := cfg["codec"].(string)
	if codec == "" {
		codec = codecGzip
	}
	return &CompressProcessor{codec: codec}, nil
}

func (p *CompressProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch p.codec {
	case codecGzip:
		w = gzip.NewWriter(&buf)
	case codecZlib:
		w = zlib.NewWriter(&buf)
	case codecDeflate:
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, ferrors.Processing(err, "compress: opening deflate writer")
		}
		w = fw
	default:
		return nil, ferrors.New(ferrors.KindConfig, "compress: unknown codec %q", p.codec)
	}
	if _, err := w.Write(m.Bytes); err != nil {
		return nil, ferrors.Processing(err, "compress: writing")
	}
	if err := w.Close(); err != nil {
		return nil, ferrors.Processing(err, "compress: closing")
	}
	m.Bytes = buf.Bytes()
	return component.ProcessResult{m}, nil
}

func (p *CompressProcessor) Close(context.Context) error { return nil }

// DecompressProcessor reverses CompressProcessor.
type DecompressProcessor struct{ codec string }

func NewDecompressProcessor(cfg map[string]any) (component.Processor, error) {
	codec, _ := cfg["codec"].(string)
	if codec == "" {
		codec = codecGzip
	}
	return &DecompressProcessor{codec: codec}, nil
}

func (p *DecompressProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	src := bytes.NewReader(m.Bytes)
	var r io.ReadCloser
	var err error
	switch p.codec {
	case codecGzip:
		r, err = gzip.NewReader(src)
	case codecZlib:
		r, err = zlib.NewReader(src)
	case codecDeflate:
		r = flate.NewReader(src)
	default:
		return nil, ferrors.New(ferrors.KindConfig, "decompress: unknown codec %q", p.codec)
	}
	if err != nil {
		return nil, ferrors.Processing(err, "decompress: opening reader")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, ferrors.Processing(err, "decompress: reading")
	}
	m.Bytes = out
	return component.ProcessResult{m}, nil
}

func (p *DecompressProcessor) Close(context.Context) error { return nil }

// DecodeProcessor applies a simple text transcoding; currently only
// base64 is supported, grounded on the same coercion the script engine's
// base64_decode builtin performs.
type DecodeProcessor struct{ encoding string }

func NewDecodeProcessor(cfg map[string]any) (component.Processor, error) {
	enc, _ := cfg["encoding"].(string)
	if enc == "" {
		enc = "base64"
	}
	return &DecodeProcessor{encoding: enc}, nil
}

func (p *DecodeProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	switch p.encoding {
	case "base64":
		out := make([]byte, base64.StdEncoding.DecodedLen(len(m.Bytes)))
		n, err := base64.StdEncoding.Decode(out, m.Bytes)
		if err != nil {
			return nil, ferrors.Processing(err, "decode: base64")
		}
		m.Bytes = out[:n]
		return component.ProcessResult{m}, nil
	default:
		return nil, ferrors.New(ferrors.KindConfig, "decode: unknown encoding %q", p.encoding)
	}
}

func (p *DecodeProcessor) Close(context.Context) error { return nil }
