package output

import (
	"bufio"
	"context"
	"os"
	"testing"
)


func TestStdoutOutputWritesPayloadWithNewline(t *testing.T) {
	o, err := NewStdoutOutput(map[string]any{})
	if err != nil {
		t.Fatalf("NewStdoutOutput: %v", err)
	}
	so := o.(*StdoutOutput)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	so.w = bufio.NewWriter(w)

	if err := so.Write(context.Background(), newOutputMessage(t, "hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Close()

	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	if string(buf[:n]) != "hello\n" {
		t.Fatalf("wrote %q, want 'hello\\n'", buf[:n])
	}
}

func TestDropOutputDiscardsWithoutError(t *testing.T) {
	o, err := NewDropOutput(map[string]any{})
	if err != nil {
		t.Fatalf("NewDropOutput: %v", err)
	}
	if err := o.Write(context.Background(), newOutputMessage(t, "anything")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := o.WriteBatch(context.Background(), nil); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
}
