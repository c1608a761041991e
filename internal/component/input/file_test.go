package input

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileInputTailsExistingContentAndPersistsOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")
	if err := os.WriteFile(path, []byte("line-one\nline-two\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	posPath := filepath.Join(dir, "log.txt.pos")
	in, err := NewFileInput(map[string]any{"path": path, "position_file": posPath, "poll_ms": 10})
	if err != nil {
		t.Fatalf("NewFileInput: %v", err)
	}
	f := in.(*FileInput)
	if err := f.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())

	m1, err := f.Read(ctx)
	if err != nil {
		t.Fatalf("Read #1: %v", err)
	}
	if string(m1.Bytes) != "line-one" {
		t.Fatalf("Read #1 = %q, want 'line-one'", m1.Bytes)
	}
	m1.Token().Drop(true, nil)

	m2, err := f.Read(ctx)
	if err != nil {
		t.Fatalf("Read #2: %v", err)
	}
	if string(m2.Bytes) != "line-two" {
		t.Fatalf("Read #2 = %q, want 'line-two'", m2.Bytes)
	}
	m2.Token().Drop(true, nil)

	cancel()
	if _, err := f.Read(ctx); err == nil {
		t.Fatalf("expected an error once the context is cancelled mid-poll")
	}

	persisted := readPersistedOffset(posPath, f.path)
	if persisted != int64(len("line-one\nline-two\n")) {
		t.Fatalf("persisted offset = %d, want %d", persisted, len("line-one\nline-two\n"))
	}
}

func TestFileInputResumesFromPersistedOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")
	if err := os.WriteFile(path, []byte("old\nnew\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	posPath := filepath.Join(dir, "log.txt.pos")

	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}
	if err := os.WriteFile(posPath, []byte(abs+"\t4\n"), 0o644); err != nil {
		t.Fatalf("WriteFile position: %v", err)
	}

	in, err := NewFileInput(map[string]any{"path": path, "position_file": posPath, "poll_ms": 10})
	if err != nil {
		t.Fatalf("NewFileInput: %v", err)
	}
	f := in.(*FileInput)
	if err := f.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close(context.Background())

	m, err := f.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(m.Bytes) != "new" {
		t.Fatalf("Read = %q, want 'new' (resumed past the persisted offset)", m.Bytes)
	}
}

func TestNewFileInputRequiresPath(t *testing.T) {
	if _, err := NewFileInput(map[string]any{}); err == nil {
		t.Fatalf("expected an error when 'path' is missing")
	}
}
