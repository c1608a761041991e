package output

import (
	"context"
	"testing"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/message"
)

type captureOutput struct {
	writes []string
}

func (c *captureOutput) Open(context.Context) error { return nil }
func (c *captureOutput) Write(_ context.Context, m *message.Message) error {
	c.writes = append(c.writes, string(m.Bytes))
	return nil
}
func (c *captureOutput) WriteBatch(ctx context.Context, ms []*message.Message) error {
	for _, m := range ms {
		if err := c.Write(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
func (c *captureOutput) Batch() component.BatchPolicy { return component.BatchPolicy{} }
func (c *captureOutput) Flush(context.Context) error  { return nil }
func (c *captureOutput) Close(context.Context) error  { return nil }

func newSwitchMessage(t *testing.T, body string) *message.Message {
	t.Helper()
	return message.New([]byte(body), message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure))
}

func TestOutputSwitchRoutesToMatchingCase(t *testing.T) {
	matched := &captureOutput{}
	fallback := &captureOutput{}
	s, err := NewOutputSwitch([]OutputSwitchCase{
		{Condition: "kind == `\"a\"`", Output: matched},
		{Condition: "", Output: fallback},
	})
	if err != nil {
		t.Fatalf("NewOutputSwitch: %v", err)
	}

	if err := s.Write(context.Background(), newSwitchMessage(t, `{"kind":"a"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(matched.writes) != 1 || len(fallback.writes) != 0 {
		t.Fatalf("expected the matching case to receive the message, got matched=%v fallback=%v", matched.writes, fallback.writes)
	}
}

func TestOutputSwitchFallsThroughToDefaultCase(t *testing.T) {
	matched := &captureOutput{}
	fallback := &captureOutput{}
	s, err := NewOutputSwitch([]OutputSwitchCase{
		{Condition: "kind == `\"a\"`", Output: matched},
		{Condition: "", Output: fallback},
	})
	if err != nil {
		t.Fatalf("NewOutputSwitch: %v", err)
	}

	if err := s.Write(context.Background(), newSwitchMessage(t, `{"kind":"b"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(fallback.writes) != 1 || len(matched.writes) != 0 {
		t.Fatalf("expected the default case to receive the non-matching message")
	}
}

func TestOutputSwitchNoMatchIsAnError(t *testing.T) {
	s, err := NewOutputSwitch([]OutputSwitchCase{
		{Condition: "kind == `\"a\"`", Output: &captureOutput{}},
	})
	if err != nil {
		t.Fatalf("NewOutputSwitch: %v", err)
	}
	if err := s.Write(context.Background(), newSwitchMessage(t, `{"kind":"b"}`)); err == nil {
		t.Fatalf("expected an error when no case matches and there is no default")
	}
}

func TestNewOutputSwitchConfigBuildsNestedOutputs(t *testing.T) {
	out, err := NewOutputSwitchConfig(map[string]any{
		"cases": []any{
			map[string]any{
				"condition": "kind == `\"a\"`",
				"output":    map[string]any{"drop": map[string]any{}},
			},
			map[string]any{
				"condition": "",
				"output":    map[string]any{"stdout": map[string]any{}},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewOutputSwitchConfig: %v", err)
	}
	s := out.(*OutputSwitch)
	if len(s.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(s.Cases))
	}
	if _, ok := s.Cases[0].Output.(*DropOutput); !ok {
		t.Fatalf("expected case 0's output to be a *DropOutput, got %T", s.Cases[0].Output)
	}
	if _, ok := s.Cases[1].Output.(*StdoutOutput); !ok {
		t.Fatalf("expected case 1's output to be a *StdoutOutput, got %T", s.Cases[1].Output)
	}
}

func TestNewOutputSwitchConfigRequiresCases(t *testing.T) {
	if _, err := NewOutputSwitchConfig(map[string]any{}); err == nil {
		t.Fatalf("expected an error when 'cases' is missing")
	}
}
