package input

import (
	"context"
	"io"
	"os"
	"testing"
)

func TestStdinInputReadsLinesAndReportsEOF(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	orig := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = orig }()

	go func() {
		_, _ = w.WriteString("first\nsecond\n")
		_ = w.Close()
	}()

	in, err := NewStdinInput(map[string]any{})
	if err != nil {
		t.Fatalf("NewStdinInput: %v", err)
	}
	s := in.(*StdinInput)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	m1, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read #1: %v", err)
	}
	if string(m1.Bytes) != "first" {
		t.Fatalf("Read #1 = %q, want 'first'", m1.Bytes)
	}
	if m1.StreamID == "" {
		t.Fatalf("expected a generated stream id")
	}

	m2, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read #2: %v", err)
	}
	if string(m2.Bytes) != "second" {
		t.Fatalf("Read #2 = %q, want 'second'", m2.Bytes)
	}
	if m2.StreamID == m1.StreamID {
		t.Fatalf("expected distinct stream ids per line")
	}

	if _, err := s.Read(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF once stdin is exhausted, got %v", err)
	}
}
