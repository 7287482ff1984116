package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/config"
	"github.com/roach88/keyflow/internal/constraint"
	"github.com/roach88/keyflow/internal/engine"
	"github.com/roach88/keyflow/internal/matcher"
	"github.com/roach88/keyflow/internal/sched"
	"github.com/roach88/keyflow/internal/store"
)

// Epoch is the virtual time every scenario starts at.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness is the execution state of one scenario run.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	sched  *sched.Virtual
	loader *config.Loader

	mu    sync.Mutex
	facts constraint.Facts
}

// Snapshot implements constraint.Provider over the current scenario facts.
func (h *Harness) Snapshot() constraint.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.facts
}

func (h *Harness) setFacts(f constraint.Facts) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.facts = f
}

// failingSink performs nothing and fails the configured action kinds.
type failingSink struct {
	kinds []action.Kind
}

func (s failingSink) Perform(_ context.Context, data action.Data, _ action.InputEventType, _ int) error {
	if slices.Contains(s.kinds, data.Kind) {
		return fmt.Errorf("%s actions unavailable", data.Kind)
	}
	return nil
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal on a virtual scheduler
// starting at Epoch, with sequential key map UIDs and firing IDs, so the
// trace is identical across runs.
//
// Execution flow:
// 1. Load the configuration and the initial facts
// 2. Execute steps in order
// 3. Read the journal back as the trace
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	loader := config.NewLoader(config.DefaultDefaults())
	loader.NewUID = func(_ string, index int) string {
		return fmt.Sprintf("keymap-%d", index+1)
	}

	cfg, err := loadConfig(loader, scenario)
	if err != nil {
		return nil, err
	}
	facts, err := scenario.Facts.ToFacts()
	if err != nil {
		return nil, fmt.Errorf("facts: %w", err)
	}

	result := NewResult()
	h := &Harness{
		store:  st,
		sched:  sched.NewVirtual(Epoch),
		loader: loader,
		facts:  facts,
	}
	h.engine = engine.New(h.sched, failingSink{kinds: scenario.FailKinds}, constraint.LazyProvider{Source: h},
		engine.WithStore(st),
		engine.WithIDGenerator(engine.NewSequenceGenerator("firing")),
		engine.WithContext(ctx),
		engine.WithErrorHandler(func(error) { result.ActionFailures++ }),
	)
	if err := h.engine.Load(cfg.Set, cfg.Defaults); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	result.Idle = h.engine.Idle()

	trace, err := readTrace(ctx, st)
	if err != nil {
		return nil, err
	}
	result.Trace = trace

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func loadConfig(loader *config.Loader, s *Scenario) (*config.Config, error) {
	if path := s.ConfigPath(); path != "" {
		cfg, err := loader.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := loader.Parse([]byte(s.InlineConfig), s.Name+".yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to parse inline config: %w", err)
	}
	return cfg, nil
}

// executeStep runs one step.
func (h *Harness) executeStep(step Step) error {
	dev := matcher.Device{Descriptor: step.Device, External: step.Device != ""}
	key := func(code int, down bool) {
		h.engine.Handle(matcher.KeyEvent{KeyCode: code, Device: dev, Down: down, MetaState: step.Meta})
	}

	switch {
	case step.Down != nil:
		key(*step.Down, true)
	case step.Up != nil:
		key(*step.Up, false)
	case step.Tap != nil:
		key(*step.Tap, true)
		key(*step.Tap, false)
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.sched.Advance(d)
	case step.Facts != nil:
		f, err := step.Facts.ToFacts()
		if err != nil {
			return fmt.Errorf("facts: %w", err)
		}
		h.setFacts(f)
	case step.Reset:
		h.engine.Reset()
	case step.Reload != "":
		cfg, err := h.loader.Parse([]byte(step.Reload), "reload.yaml")
		if err != nil {
			return fmt.Errorf("reload: %w", err)
		}
		if err := h.engine.Load(cfg.Set, cfg.Defaults); err != nil {
			return fmt.Errorf("reload: %w", err)
		}
	}

	slog.Debug("scenario step completed", "at", h.sched.Now().Sub(Epoch))
	return nil
}

// readTrace converts the journal into trace events.
func readTrace(ctx context.Context, st *store.Store) ([]TraceEvent, error) {
	entries, err := st.ReadJournal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	trace := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Firing != nil:
			f := e.Firing
			trace = append(trace, TraceEvent{
				Type:        EventFiring,
				Seq:         f.Seq,
				At:          f.At.Sub(Epoch),
				KeyMap:      f.KeyMapUID,
				FiringID:    f.ID,
				Signal:      f.Kind,
				Satisfied:   f.Satisfied,
				FromRelease: f.FromRelease,
			})
		case e.Perform != nil:
			p := e.Perform
			trace = append(trace, TraceEvent{
				Type:   EventPerform,
				Seq:    p.Seq,
				At:     p.At.Sub(Epoch),
				KeyMap: p.KeyMapUID,
				Action: p.Action.String(),
				Event:  p.Event.String(),
				Error:  p.Error,
			})
		}
	}
	return trace, nil
}
