// Control processors: switch, try, filter, transform. Each
// wraps JMESPath (github.com/jmespath/go-jmespath) boolean/value evaluation
// over the message parsed as JSON, the same library the script engine's
// jmespath() builtin uses, grounded on its confirmed real-world pairing
// with JMESPath evaluation in AltairaLabs-PromptKit's json_path.go.
package processor

import (
	"context"
	"fmt"

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

// buildProcessorRef constructs a nested processor from its single-key
// config object (e.g. {"transform": {...}}), going back through the
// package's own registry - control processors are the only plugins that
// need to recursively construct other plugins.
func buildProcessorRef(raw any) (component.Processor, error) {
	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, ferrors.New(ferrors.KindConfig, "expected a single-key processor object, got %T", raw)
	}
	for k, v := range m {
		sub, _ := v.(map[string]any)
		if sub == nil {
			sub = map[string]any{}
		}
		return Registry.Build(k, sub)
	}
	return nil, fmt.Errorf("unreachable")
}

// NewFilterProcessorConfig adapts NewFilterProcessor to the registry's
// map[string]any constructor signature.
func NewFilterProcessorConfig(cfg map[string]any) (component.Processor, error) {
	cond, _ := cfg["condition"].(string)
	return NewFilterProcessor(cond)
}

// NewSwitchProcessorConfig builds a SwitchProcessor from a list of
// {condition, processor} branches under the "cases" key.
func NewSwitchProcessorConfig(cfg map[string]any) (component.Processor, error) {
	raw, ok := cfg["cases"].([]any)
	if !ok {
		return nil, ferrors.New(ferrors.KindConfig, "switch: 'cases' must be a list")
	}
	branches := make([]SwitchBranch, 0, len(raw))
	for i, rb := range raw {
		bm, ok := rb.(map[string]any)
		if !ok {
			return nil, ferrors.New(ferrors.KindConfig, "switch: cases[%d] must be an object", i)
		}
		cond, _ := bm["condition"].(string)
		var inner component.Processor
		if procRaw, ok := bm["processor"]; ok {
			p, err := buildProcessorRef(procRaw)
			if err != nil {
				return nil, ferrors.Wrap(ferrors.KindConfig, err, "switch: cases[%d].processor", i)
			}
			inner = p
		}
		branches = append(branches, SwitchBranch{Condition: cond, Inner: inner})
	}
	return NewSwitchProcessor(branches)
}

// NewTryProcessorConfig builds a TryProcessor from "processor" and optional
// "catch" single-key sub-configs.
func NewTryProcessorConfig(cfg map[string]any) (component.Processor, error) {
	procRaw, ok := cfg["processor"]
	if !ok {
		return nil, ferrors.New(ferrors.KindConfig, "try: 'processor' is required")
	}
	inner, err := buildProcessorRef(procRaw)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "try: processor")
	}
	var catch component.Processor
	if catchRaw, ok := cfg["catch"]; ok {
		catch, err = buildProcessorRef(catchRaw)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.KindConfig, err, "try: catch")
		}
	}
	return &TryProcessor{Inner: inner, Catch: catch}, nil
}

// NewTransformProcessorConfig builds a TransformProcessor from a list of
// {source, target} mappings under the "mappings" key.
func NewTransformProcessorConfig(cfg map[string]any) (component.Processor, error) {
	raw, ok := cfg["mappings"].([]any)
	if !ok {
		return nil, ferrors.New(ferrors.KindConfig, "transform: 'mappings' must be a list")
	}
	mappings := make([]TransformMapping, 0, len(raw))
	for i, rm := range raw {
		mm, ok := rm.(map[string]any)
		if !ok {
			return nil, ferrors.New(ferrors.KindConfig, "transform: mappings[%d] must be an object", i)
		}
		src, _ := mm["source"].(string)
		tgt, _ := mm["target"].(string)
		mappings = append(mappings, TransformMapping{Source: src, Target: tgt})
	}
	return NewTransformProcessor(mappings)
}

// FilterProcessor runs a JMESPath boolean condition; false filters the
// message.
type FilterProcessor struct {
	Condition string
	expr      *jmespath.JMESPath
}

func NewFilterProcessor(condition string) (*FilterProcessor, error) {
	expr, err := jmespath.Compile(condition)
	if err != nil {
		return nil, ferrors.New(ferrors.KindConfig, "filter: invalid condition: %s", err.Error())
	}
	return &FilterProcessor{Condition: condition, expr: expr}, nil
}

func (p *FilterProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	doc, err := parseMessageJSON(m)
	if err != nil {
		return nil, err
	}
	res, err := p.expr.Search(doc)
	if err != nil {
		return nil, ferrors.Processing(err, "filter: evaluating condition")
	}
	if b, ok := res.(bool); ok && b {
		return component.ProcessResult{m}, nil
	}
	return nil, nil
}

func (p *FilterProcessor) Close(context.Context) error { return nil }

// SwitchBranch is one arm of a switch processor.
type SwitchBranch struct {
	Condition string // JMESPath boolean; empty means "default", always matches
	expr      *jmespath.JMESPath
	Inner     component.Processor
}

// SwitchProcessor tries each branch's condition in order; the first true
// branch runs its inner processor, others are skipped. No match passes the
// message through unchanged.
type SwitchProcessor struct {
	Branches []SwitchBranch
}

func NewSwitchProcessor(branches []SwitchBranch) (*SwitchProcessor, error) {
	for i := range branches {
		if branches[i].Condition == "" {
			continue
		}
		expr, err := jmespath.Compile(branches[i].Condition)
		if err != nil {
			return nil, ferrors.New(ferrors.KindConfig, "switch: invalid condition: %s", err.Error())
		}
		branches[i].expr = expr
	}
	return &SwitchProcessor{Branches: branches}, nil
}

func (p *SwitchProcessor) Process(ctx context.Context, m *message.Message) (component.ProcessResult, error) {
	doc, err := parseMessageJSON(m)
	if err != nil {
		return nil, err
	}
	for _, b := range p.Branches {
		matched := b.expr == nil // empty condition = default, always matches
		if !matched {
			res, err := b.expr.Search(doc)
			if err != nil {
				return nil, ferrors.Processing(err, "switch: evaluating condition")
			}
			matched, _ = res.(bool)
		}
		if matched {
			if b.Inner == nil {
				return component.ProcessResult{m}, nil
			}
			return b.Inner.Process(ctx, m)
		}
	}
	return component.ProcessResult{m}, nil
}

func (p *SwitchProcessor) Close(ctx context.Context) error {
	for _, b := range p.Branches {
		if b.Inner != nil {
			if err := b.Inner.Close(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// TryProcessor runs Inner; on any error other than ConditionalCheckFailed,
// it runs Catch instead.
type TryProcessor struct {
	Inner component.Processor
	Catch component.Processor
}

func (p *TryProcessor) Process(ctx context.Context, m *message.Message) (component.ProcessResult, error) {
	res, err := p.Inner.Process(ctx, m)
	if err == nil {
		return res, nil
	}
	if ferrors.IsKind(err, ferrors.KindConditionalCheckFailed) {
		return nil, err
	}
	if p.Catch == nil {
		return nil, err
	}
	return p.Catch.Process(ctx, m)
}

func (p *TryProcessor) Close(ctx context.Context) error {
	if err := p.Inner.Close(ctx); err != nil {
		return err
	}
	if p.Catch != nil {
		return p.Catch.Close(ctx)
	}
	return nil
}

// TransformMapping is one source->target pair for a TransformProcessor.
type TransformMapping struct {
	Source string // JMESPath expression evaluated against the parsed message
	Target string // destination key in the rebuilt JSON document
	expr   *jmespath.JMESPath
}

// TransformProcessor rebuilds a JSON document from JMESPath-selected
// fields; unmapped fields are discarded.
type TransformProcessor struct {
	Mappings []TransformMapping
}

func NewTransformProcessor(mappings []TransformMapping) (*TransformProcessor, error) {
	for i := range mappings {
		expr, err := jmespath.Compile(mappings[i].Source)
		if err != nil {
			return nil, ferrors.New(ferrors.KindConfig, "transform: invalid source %q: %s", mappings[i].Source, err.Error())
		}
		mappings[i].expr = expr
	}
	return &TransformProcessor{Mappings: mappings}, nil
}

func (p *TransformProcessor) Process(_ context.Context, m *message.Message) (component.ProcessResult, error) {
	doc, err := parseMessageJSON(m)
	if err != nil {
		return nil, err
	}
	out := value.NewDict()
	for _, mp := range p.Mappings {
		res, err := mp.expr.Search(doc)
		if err != nil {
			return nil, ferrors.Processing(err, "transform: evaluating %q", mp.Source)
		}
		out = out.Set(mp.Target, value.FromAny(res))
	}
	b, err := value.ToJSON(value.DictVal(out))
	if err != nil {
		return nil, ferrors.Processing(err, "transform: serializing result")
	}
	m.Bytes = b
	return component.ProcessResult{m}, nil
}

func (p *TransformProcessor) Close(context.Context) error { return nil }
