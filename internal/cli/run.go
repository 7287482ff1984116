package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/config"
	"github.com/roach88/keyflow/internal/constraint"
	"github.com/roach88/keyflow/internal/engine"
	"github.com/roach88/keyflow/internal/matcher"
	"github.com/roach88/keyflow/internal/sched"
	"github.com/roach88/keyflow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Facts    string
	Watch    bool
	Poll     time.Duration
	Firings  bool

	// Linger keeps the engine running after input ends so pending long
	// presses and repeats can finish.
	Linger time.Duration

	// Clock drives the scheduler and the watcher. Nil means the real clock.
	Clock clockwork.Clock

	// IDs overrides the firing ID generator (for testing).
	IDs engine.IDGenerator
}

// KeyEventLine is one line of run input.
type KeyEventLine struct {
	KeyCode   int    `json:"key_code"`
	ScanCode  int    `json:"scan_code,omitempty"`
	Down      bool   `json:"down"`
	Device    string `json:"device,omitempty"` // external device descriptor; empty is the built-in keyboard
	MetaState int    `json:"meta_state,omitempty"`
}

func (l KeyEventLine) toEvent() matcher.KeyEvent {
	return matcher.KeyEvent{
		KeyCode:   l.KeyCode,
		ScanCode:  l.ScanCode,
		Device:    matcher.Device{Descriptor: l.Device, External: l.Device != ""},
		Down:      l.Down,
		MetaState: l.MetaState,
	}
}

// OutputLine is one line of run output: a perform, or a firing when
// --firings is set.
type OutputLine struct {
	Type string `json:"type"` // "perform" | "firing"

	Action    *action.Data `json:"action,omitempty"`
	Event     string       `json:"event,omitempty"`
	MetaState int          `json:"meta_state,omitempty"`

	FiringID  string `json:"firing_id,omitempty"`
	KeyMap    string `json:"keymap,omitempty"`
	Signal    string `json:"signal,omitempty"`
	Satisfied *bool  `json:"satisfied,omitempty"`
}

// lineWriter is the run command's sink: every perform becomes a JSON line.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{enc: json.NewEncoder(w)}
}

func (w *lineWriter) write(line OutputLine) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(line)
}

// Perform implements dispatch.Sink.
func (w *lineWriter) Perform(_ context.Context, data action.Data, ev action.InputEventType, metaState int) error {
	return w.write(OutputLine{Type: "perform", Action: &data, Event: ev.String(), MetaState: metaState})
}

func (w *lineWriter) firing(f engine.Firing) {
	satisfied := f.Satisfied
	err := w.write(OutputLine{
		Type:      "firing",
		FiringID:  f.ID,
		KeyMap:    f.KeyMapUID,
		Signal:    f.Signal.Kind.String(),
		MetaState: f.Signal.MetaState,
		Satisfied: &satisfied,
	})
	if err != nil {
		slog.Error("writing firing failed", "firing", f.ID, "error", err)
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine on key events from stdin",
		Long: `Run the key map engine.

Key events are read from stdin as JSON lines:
  {"key_code": 24, "down": true}
  {"key_code": 24, "down": false, "device": "pedal-1"}

Every action performed is written to stdout as a JSON line. Device facts
for constraints come from --facts. With --db every firing and perform is
journaled to SQLite, continuing any journal already there.

The engine stops when stdin ends (after --linger) or on SIGINT/SIGTERM;
held actions are released on the way out.

Example:
  keyflow run --config keymaps.yaml --db journal.db --facts facts.yaml
  keyflow run --config keymaps.yaml --watch --firings < events.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "key map configuration, .yaml or .cue (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite journal (optional)")
	cmd.Flags().StringVar(&opts.Facts, "facts", "", "YAML device facts for constraints")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload the configuration when it changes")
	cmd.Flags().DurationVar(&opts.Poll, "poll", config.DefaultPollInterval, "watch poll interval")
	cmd.Flags().BoolVar(&opts.Firings, "firings", false, "also write trigger firings to stdout")
	cmd.Flags().DurationVar(&opts.Linger, "linger", 0, "keep running this long after stdin ends")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	// stdout carries JSON lines; diagnostics go to stderr.
	formatter := newFormatter(opts.RootOptions, cmd.ErrOrStderr(), cmd.ErrOrStderr())

	loader, err := newLoader(opts.RootOptions)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	cfg, err := loader.Load(opts.Config)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	var provider constraint.Provider = constraint.Static{}
	if opts.Facts != "" {
		facts, err := config.LoadFacts(opts.Facts)
		if err != nil {
			return reportLoadError(formatter, err)
		}
		provider = constraint.Static{Facts: facts}
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := newLineWriter(cmd.OutOrStdout())
	var failures atomic.Int64
	engineOpts := []engine.Option{
		engine.WithContext(ctx),
		engine.WithErrorHandler(func(err error) {
			failures.Add(1)
			slog.Debug("action failure reported", "error", err)
		}),
	}
	if opts.IDs != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDs))
	}
	if opts.Firings {
		engineOpts = append(engineOpts, engine.WithFiringHook(out.firing))
	}

	if opts.Database != "" {
		slog.Info("opening journal", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		last, err := st.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		engineOpts = append(engineOpts, engine.WithStore(st), engine.WithClock(engine.NewClockAt(last)))
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	eng := engine.New(sched.NewClock(clock), out, provider, engineOpts...)
	if err := eng.Load(cfg.Set, cfg.Defaults); err != nil {
		_ = formatter.Error("E_LOAD", err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to bind key maps", err)
	}

	if opts.Watch {
		w := config.NewWatcher(opts.Config, loader, clock, opts.Poll)
		w.Prime()
		go func() {
			_ = w.Run(ctx, func(cfg *config.Config) {
				eng.Enqueue(engine.ReloadEvent(cfg))
			})
		}()
	}

	go func() {
		readKeyEvents(cmd.InOrStdin(), eng)
		if opts.Linger > 0 {
			select {
			case <-clock.After(opts.Linger):
			case <-ctx.Done():
			}
		}
		eng.Stop()
	}()

	slog.Info("engine started", "config", cfg.Source, "keymaps", len(eng.Bindings()))
	err = eng.Run(ctx)
	slog.Info("engine stopped", "action_failures", failures.Load())
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	return nil
}

// readKeyEvents enqueues every line of r until it ends. Malformed lines are
// logged and skipped.
func readKeyEvents(r io.Reader, eng *engine.Engine) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line KeyEventLine
		if err := json.Unmarshal(raw, &line); err != nil {
			slog.Warn("skipping malformed key event", "line", lineNo, "error", err)
			continue
		}
		if line.KeyCode <= 0 {
			slog.Warn("skipping key event without key code", "line", lineNo)
			continue
		}
		if !eng.Enqueue(engine.KeyEvent(line.toEvent())) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("reading key events failed", "error", fmt.Errorf("line %d: %w", lineNo, err))
	}
}
