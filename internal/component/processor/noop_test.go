package processor

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/rc1405/fiddler/internal/message"
)

func newRawMessage(t *testing.T, body []byte) *message.Message {
	t.Helper()
	return message.New(body, message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure))
}

func TestNoopProcessorPassesThroughUnchanged(t *testing.T) {
	p := NoopProcessor{}
	m := newRawMessage(t, []byte("unchanged"))
	res, err := p.Process(context.Background(), m)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res) != 1 || res[0] != m {
		t.Fatalf("expected the same message returned unchanged")
	}
}

func TestLinesProcessorFansOutSkippingEmptyLines(t *testing.T) {
	p := LinesProcessor{}
	m := newRawMessage(t, []byte("a\n\nb\nc"))
	res, err := p.Process(context.Background(), m)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 non-empty lines, got %d", len(res))
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if string(res[i].Bytes) != w {
			t.Fatalf("line %d = %q, want %q", i, res[i].Bytes, w)
		}
	}
}

func TestCompressDecompressRoundTripGzip(t *testing.T) {
	testCompressDecompressRoundTrip(t, codecGzip)
}

func TestCompressDecompressRoundTripZlib(t *testing.T) {
	testCompressDecompressRoundTrip(t, codecZlib)
}

func TestCompressDecompressRoundTripDeflate(t *testing.T) {
	testCompressDecompressRoundTrip(t, codecDeflate)
}

func testCompressDecompressRoundTrip(t *testing.T, codec string) {
	t.Helper()
	comp, err := NewCompressProcessor(map[string]any{"codec": codec})
	if err != nil {
		t.Fatalf("NewCompressProcessor(%s): %v", codec, err)
	}
	decomp, err := NewDecompressProcessor(map[string]any{"codec": codec})
	if err != nil {
		t.Fatalf("NewDecompressProcessor(%s): %v", codec, err)
	}

	original := []byte("round trip payload for " + codec)
	m := newRawMessage(t, original)

	compressed, err := comp.Process(context.Background(), m)
	if err != nil {
		t.Fatalf("compress.Process(%s): %v", codec, err)
	}
	if len(compressed) != 1 {
		t.Fatalf("expected one compressed message, got %d", len(compressed))
	}
	if bytes.Equal(compressed[0].Bytes, original) {
		t.Fatalf("expected the payload to actually change under compression")
	}

	decompressed, err := decomp.Process(context.Background(), compressed[0])
	if err != nil {
		t.Fatalf("decompress.Process(%s): %v", codec, err)
	}
	if len(decompressed) != 1 || !bytes.Equal(decompressed[0].Bytes, original) {
		t.Fatalf("round trip mismatch for %s: got %q, want %q", codec, decompressed[0].Bytes, original)
	}
}

func TestCompressProcessorUnknownCodec(t *testing.T) {
	p, err := NewCompressProcessor(map[string]any{"codec": "bogus"})
	if err != nil {
		t.Fatalf("NewCompressProcessor: %v", err)
	}
	_, err = p.Process(context.Background(), newRawMessage(t, []byte("x")))
	if err == nil {
		t.Fatalf("expected an error for an unknown compression codec")
	}
}

func TestDecodeProcessorBase64(t *testing.T) {
	p, err := NewDecodeProcessor(map[string]any{"encoding": "base64"})
	if err != nil {
		t.Fatalf("NewDecodeProcessor: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte("hello world"))
	res, err := p.Process(context.Background(), newRawMessage(t, []byte(encoded)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res) != 1 || string(res[0].Bytes) != "hello world" {
		t.Fatalf("expected decoded payload 'hello world', got %q", res[0].Bytes)
	}
}

func TestDecodeProcessorUnknownEncoding(t *testing.T) {
	p, err := NewDecodeProcessor(map[string]any{"encoding": "rot13"})
	if err != nil {
		t.Fatalf("NewDecodeProcessor: %v", err)
	}
	_, err = p.Process(context.Background(), newRawMessage(t, []byte("x")))
	if err == nil {
		t.Fatalf("expected an error for an unknown decode encoding")
	}
}
