// Package input collects the concrete Input plugins and the registry they
// install themselves into.
package input

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/message"
)

// StdinInput reads newline-delimited messages from os.Stdin, one message
// per line. Each line gets a fresh stream_id so the tracker treats every
// line as its own stream - stdin has no natural grouping.
type StdinInput struct {
	scanner *bufio.Scanner
	mu      sync.Mutex
}

func NewStdinInput(map[string]any) (component.Input, error) {
	return &StdinInput{}, nil
}

func (s *StdinInput) Open(context.Context) error {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	s.scanner = sc
	return nil
}

func (s *StdinInput) Read(ctx context.Context) (*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, ferrors.Fatal(err, "stdin: reading")
		}
		return nil, io.EOF
	}
	line := append([]byte(nil), s.scanner.Bytes()...)
	id, err := uuid.NewV4()
	if err != nil {
		return nil, ferrors.Fatal(err, "stdin: generating stream id")
	}
	m := message.New(line, message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure))
	m.StreamID = id.String()
	return m, nil
}

// Ack/Nack are no-ops: stdin has no redelivery mechanism.
func (s *StdinInput) Ack(context.Context, *message.Message) error         { return nil }
func (s *StdinInput) Nack(context.Context, *message.Message, error) error { return nil }
func (s *StdinInput) Close(context.Context) error                         { return nil }
