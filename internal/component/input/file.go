package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/message"
)

// FileInput tails a single file, emitting one message per newline-delimited
// line and persisting its read offset on ack (a position file mapping
// filename -> byte_offset, format "<absolute_path>\t<offset>\n").
// Grounded on Heka's LogstreamerInput seek-and-tail idiom, adapted to
// Fiddler's single-codec "Tail" surface.
type FileInput struct {
	path         string
	posPath      string
	pollInterval time.Duration

	mu     sync.Mutex
	f      *os.File
	reader *bufio.Reader
	offset int64
}

func NewFileInput(cfg map[string]any) (component.Input, error) {
	path, _ := cfg["path"].(string)
	if path == "" {
		return nil, ferrors.New(ferrors.KindConfig, "file input: 'path' is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "file input: resolving path")
	}
	posPath, _ := cfg["position_file"].(string)
	if posPath == "" {
		posPath = abs + ".fiddler-position"
	}
	pollMs := 500
	if v, ok := cfg["poll_ms"].(int); ok && v > 0 {
		pollMs = v
	}
	return &FileInput{path: abs, posPath: posPath, pollInterval: time.Duration(pollMs) * time.Millisecond}, nil
}

func (in *FileInput) Open(context.Context) error {
	in.offset = readPersistedOffset(in.posPath, in.path)

	f, err := os.Open(in.path)
	if err != nil {
		return ferrors.Wrap(ferrors.KindFatalIO, err, "file input: opening %s", in.path)
	}
	if _, err := f.Seek(in.offset, 0); err != nil {
		f.Close()
		return ferrors.Wrap(ferrors.KindFatalIO, err, "file input: seeking %s", in.path)
	}
	in.f = f
	in.reader = bufio.NewReader(f)
	return nil
}

// readPersistedOffset parses the position file's "path\toffset" lines and
// returns the offset recorded for path, or 0 if none is recorded.
func readPersistedOffset(posPath, path string) int64 {
	b, err := os.ReadFile(posPath)
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(b), "\n") {
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 || parts[0] != path {
			continue
		}
		off, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0
		}
		return off
	}
	return 0
}

func (in *FileInput) persistOffset(off int64) error {
	line := fmt.Sprintf("%s\t%d\n", in.path, off)
	return os.WriteFile(in.posPath, []byte(line), 0o644)
}

// Read tails the file: when it hits the current end, it polls rather than
// returning io.EOF, since a tail has no natural end short of shutdown.
func (in *FileInput) Read(ctx context.Context) (*message.Message, error) {
	for {
		in.mu.Lock()
		line, err := in.reader.ReadString('\n')
		in.mu.Unlock()

		if err == nil {
			lineBytes := []byte(strings.TrimSuffix(line, "\n"))
			endOffset := in.offset + int64(len(line))

			tok := message.NewToken(func(disp message.Disposition, _ error) {
				if disp == message.DispositionAck {
					in.mu.Lock()
					in.offset = endOffset
					in.mu.Unlock()
					_ = in.persistOffset(endOffset)
				}
			}, message.NackOnAnyFailure)

			m := message.New(lineBytes, tok)
			m.StreamID = in.path
			return m, nil
		}

		select {
		case <-ctx.Done():
			return nil, io.EOF
		case <-time.After(in.pollInterval):
		}
	}
}

func (in *FileInput) Ack(context.Context, *message.Message) error         { return nil }
func (in *FileInput) Nack(context.Context, *message.Message, error) error { return nil }

func (in *FileInput) Close(context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.f != nil {
		return in.f.Close()
	}
	return nil
}
