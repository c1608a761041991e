// Package testharness implements Fiddler's `test` command: given a pipeline
// config, locate its sibling `<stem>_test.yaml` fixture, drive the
// fixture's inputs through the config's processor chain with an in-memory
// input and output standing in for the real plugins, and compare what the
// output collected against the fixture's expected_outputs as a multiset
// (order-independent).
package testharness

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/component/processor"
	"github.com/rc1405/fiddler/internal/config"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/log"
	"github.com/rc1405/fiddler/internal/message"
	"github.com/rc1405/fiddler/internal/metrics"
	"github.com/rc1405/fiddler/internal/pipeline"
	"github.com/rc1405/fiddler/internal/tracker"
)

// Fixture is one `<stem>_test.yaml` document.
type Fixture struct {
	Name            string         `yaml:"name"`
	Inputs          []string       `yaml:"inputs"`
	ExpectedOutputs []string       `yaml:"expected_outputs"`
	// Overrides patches individual config fields by dot-path (config.DotSet)
	// before the processor chain is built, e.g. {"processors.0.threshold": 5}
	// to exercise a variant of a processor's config without a second config
	// file.
	Overrides map[string]any `yaml:"overrides"`
}

// FixturePath derives the sibling fixture path for a config file:
// pipeline.yaml -> pipeline_test.yaml.
func FixturePath(configPath string) string {
	ext := filepath.Ext(configPath)
	stem := strings.TrimSuffix(configPath, ext)
	return stem + "_test.yaml"
}

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "reading fixture %s", path)
	}
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, err, "parsing fixture %s", path)
	}
	return &f, nil
}

// Result is the outcome of running one fixture through one config.
type Result struct {
	Pass     bool
	Got      []string
	Expected []string
}

// Run builds cfg's processor chain (ignoring cfg.Input/cfg.Output - the
// fixture's inputs and an in-memory capture stand in for them), feeds
// fixture.Inputs through it, and reports whether the emitted payloads
// match fixture.ExpectedOutputs as a multiset. configPath is cfg's source
// file, re-read when fixture.Overrides is non-empty so those overrides can
// be patched into the raw document before it's reparsed.
func Run(ctx context.Context, configPath string, cfg *config.Type, fixture *Fixture) (*Result, error) {
	procs := cfg.Processors
	if len(fixture.Overrides) > 0 {
		patched, err := applyOverrides(configPath, fixture.Overrides)
		if err != nil {
			return nil, err
		}
		procs = patched.Processors
	}

	chain := make([]component.Processor, 0, len(procs))
	for _, ref := range procs {
		p, err := processor.Registry.Build(ref.Type, ref.Config)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}

	in := newFixtureInput(fixture.Inputs)
	out := newCaptureOutput()
	tr := tracker.New(tracker.Options{}, log.Default())
	agg := metrics.New()

	ex := pipeline.New(pipeline.Options{NumThreads: 1}, in, chain, out, tr, agg, log.New(io.Discard, "error"))
	if err := ex.Run(ctx); err != nil {
		return nil, ferrors.Wrap(ferrors.KindProcessing, err, "running test fixture %q", fixture.Name)
	}

	got := out.snapshot()
	return &Result{
		Pass:     multisetEqual(got, fixture.ExpectedOutputs),
		Got:      got,
		Expected: fixture.ExpectedOutputs,
	}, nil
}

// applyOverrides patches configPath's raw document at each dot-path key in
// overrides (config.DotSet) and reparses the result, so a fixture can tweak
// one processor's config value for a single test run.
func applyOverrides(configPath string, overrides map[string]any) (*config.Type, error) {
	raw, err := config.LoadRawDoc(configPath)
	if err != nil {
		return nil, err
	}
	for dotPath, v := range overrides {
		raw, err = config.DotSet(raw, dotPath, v)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.KindConfig, err, "applying fixture override %q", dotPath)
		}
	}
	return config.ParseDoc(raw)
}

func multisetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// fixtureInput replays a fixed list of strings as messages, then signals
// exhaustion with io.EOF, mirroring stdin's one-line-per-message framing.
type fixtureInput struct {
	lines []string
	idx   int
}

func newFixtureInput(lines []string) *fixtureInput { return &fixtureInput{lines: lines} }

func (f *fixtureInput) Open(context.Context) error { return nil }

func (f *fixtureInput) Read(context.Context) (*message.Message, error) {
	if f.idx >= len(f.lines) {
		return nil, io.EOF
	}
	line := f.lines[f.idx]
	f.idx++
	tok := message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure)
	return message.New([]byte(line), tok), nil
}

func (f *fixtureInput) Ack(context.Context, *message.Message) error         { return nil }
func (f *fixtureInput) Nack(context.Context, *message.Message, error) error { return nil }
func (f *fixtureInput) Close(context.Context) error                        { return nil }

// captureOutput collects every written payload instead of shipping it
// anywhere, so the harness can compare it against expected_outputs.
type captureOutput struct {
	mu   sync.Mutex
	got  []string
}

func newCaptureOutput() *captureOutput { return &captureOutput{} }

func (c *captureOutput) Open(context.Context) error { return nil }

func (c *captureOutput) Write(_ context.Context, m *message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, string(m.Bytes))
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

func (c *captureOutput) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}
