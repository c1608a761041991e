package output

import (
	"context"

	"github.com/jmespath/go-jmespath"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/message"
	"github.com/rc1405/fiddler/internal/value"
)

func parseMessageJSON(m *message.Message) (any, error) {
	v, err := value.ParseJSONBytes(m.Bytes)
	if err != nil {
		return nil, ferrors.Processing(err, "message is not valid JSON")
	}
	return value.ToAny(v), nil
}

// NewOutputSwitchConfig builds an OutputSwitch from a list of
// {condition, output} cases under the "cases" key. Only this list form is
// accepted; a keyed "cases:" map is rejected here rather than supported as
// an alternate shape.
func NewOutputSwitchConfig(cfg map[string]any) (component.Output, error) {
	raw, ok := cfg["cases"].([]any)
	if !ok {
		return nil, ferrors.New(ferrors.KindConfig, "switch output: 'cases' must be a list")
	}
	cases := make([]OutputSwitchCase, 0, len(raw))
	for i, rc := range raw {
		cm, ok := rc.(map[string]any)
		if !ok {
			return nil, ferrors.New(ferrors.KindConfig, "switch output: cases[%d] must be an object", i)
		}
		cond, _ := cm["condition"].(string)
		outRaw, ok := cm["output"]
		if !ok {
			return nil, ferrors.New(ferrors.KindConfig, "switch output: cases[%d].output is required", i)
		}
		om, ok := outRaw.(map[string]any)
		if !ok || len(om) != 1 {
			return nil, ferrors.New(ferrors.KindConfig, "switch output: cases[%d].output must be a single-key object", i)
		}
		var out component.Output
		var err error
		for k, v := range om {
			sub, _ := v.(map[string]any)
			if sub == nil {
				sub = map[string]any{}
			}
			out, err = Registry.Build(k, sub)
		}
		if err != nil {
			return nil, ferrors.Wrap(ferrors.KindConfig, err, "switch output: cases[%d].output", i)
		}
		cases = append(cases, OutputSwitchCase{Condition: cond, Output: out})
	}
	return NewOutputSwitch(cases)
}

// OutputSwitchCase is one branch of an output switch: the first whose
// Condition matches (or whose Condition is empty, meaning default) routes
// the message to Output. Only the list form is accepted; the keyed
// "cases:" form is rejected at config-validation time, before this type
// is ever constructed.
type OutputSwitchCase struct {
	Condition string
	expr      *jmespath.JMESPath
	Output    component.Output
}

// OutputSwitch implements the output-boundary switch: same
// branch-selection semantics as the processor switch, but each branch is a
// full Output rather than a Processor.
type OutputSwitch struct {
	Cases []OutputSwitchCase
}

// NewOutputSwitch compiles every case's condition up front.
func NewOutputSwitch(cases []OutputSwitchCase) (*OutputSwitch, error) {
	for i := range cases {
		if cases[i].Condition == "" {
			continue
		}
		expr, err := jmespath.Compile(cases[i].Condition)
		if err != nil {
			return nil, ferrors.New(ferrors.KindConfig, "output switch: invalid condition: %s", err.Error())
		}
		cases[i].expr = expr
	}
	return &OutputSwitch{Cases: cases}, nil
}

func (s *OutputSwitch) Open(ctx context.Context) error {
	for _, c := range s.Cases {
		if err := c.Output.Open(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *OutputSwitch) route(m *message.Message) (component.Output, error) {
	doc, err := parseMessageJSON(m)
	if err != nil {
		return nil, err
	}
	for _, c := range s.Cases {
		matched := c.expr == nil
		if !matched {
			res, err := c.expr.Search(doc)
			if err != nil {
				return nil, ferrors.Processing(err, "output switch: evaluating condition")
			}
			matched, _ = res.(bool)
		}
		if matched {
			return c.Output, nil
		}
	}
	return nil, ferrors.ConditionalCheckFailed
}

func (s *OutputSwitch) Write(ctx context.Context, m *message.Message) error {
	out, err := s.route(m)
	if err != nil {
		return err
	}
	return out.Write(ctx, m)
}

func (s *OutputSwitch) WriteBatch(ctx context.Context, ms []*message.Message) error {
	for _, m := range ms {
		if err := s.Write(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Batch reports no batching at the switch level; each branch output may
// batch independently once routed.
func (s *OutputSwitch) Batch() component.BatchPolicy { return component.BatchPolicy{} }

func (s *OutputSwitch) Flush(ctx context.Context) error {
	for _, c := range s.Cases {
		if err := c.Output.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *OutputSwitch) Close(ctx context.Context) error {
	for _, c := range s.Cases {
		if err := c.Output.Close(ctx); err != nil {
			return err
		}
	}
	return nil
}
