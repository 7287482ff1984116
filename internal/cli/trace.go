package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	KeyMap   string // optional - filter to one key map
	Firing   string // optional - one firing and its performs
}

// TraceEntry is one journal record in trace output.
type TraceEntry struct {
	Seq    int64     `json:"seq"`
	Type   string    `json:"type"` // "firing" or "perform"
	At     time.Time `json:"at"`
	KeyMap string    `json:"keymap"`

	FiringID    string `json:"firing_id,omitempty"`
	Trigger     string `json:"trigger,omitempty"`
	Signal      string `json:"signal,omitempty"`
	Satisfied   bool   `json:"satisfied,omitempty"`
	FromRelease bool   `json:"from_release,omitempty"`

	Action *action.Data `json:"action,omitempty"`
	Event  string       `json:"event,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func (e TraceEntry) String() string {
	at := e.At.UTC().Format("15:04:05.000")
	if e.Type == "perform" {
		line := fmt.Sprintf("#%d %s perform %s %s %s", e.Seq, at, e.KeyMap, e.Event, e.Action)
		if e.FiringID != "" {
			line += " (" + e.FiringID + ")"
		}
		if e.Error != "" {
			line += fmt.Sprintf(" error=%q", e.Error)
		}
		return line
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s %s %s %s %s", e.Seq, at, e.Signal, e.KeyMap, e.FiringID, e.Trigger)
	if e.FromRelease {
		b.WriteString(" from_release")
	}
	if e.Signal == store.KindFired && !e.Satisfied {
		b.WriteString(" blocked")
	}
	return b.String()
}

// TraceStats summarizes the journal.
type TraceStats struct {
	Firings  int   `json:"firings"`
	Blocked  int   `json:"blocked"`
	Performs int   `json:"performs"`
	Failed   int   `json:"failed"`
	LastSeq  int64 `json:"last_seq"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	KeyMap  string       `json:"keymap,omitempty"`
	Firing  string       `json:"firing,omitempty"`
	Entries []TraceEntry `json:"entries"`
	Stats   TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the dispatch journal",
		Long: `Show what the engine did: every trigger firing with its constraint
outcome and every action performed, in journal order.

Examples:
  keyflow trace --db journal.db
  keyflow trace --db journal.db --keymap volume_up
  keyflow trace --db journal.db --firing 0190c8e2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.KeyMap, "keymap", "", "only this key map")
	cmd.Flags().StringVar(&opts.Firing, "firing", "", "only this firing and its performs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Open would create a missing database.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error("E_NOT_FOUND", fmt.Sprintf("database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result, err := buildTrace(ctx, st, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No journal entries.")
		return nil
	}
	for _, e := range result.Entries {
		fmt.Fprintln(w, e.String())
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Firings: %d (%d blocked), performs: %d (%d failed)\n",
		result.Stats.Firings, result.Stats.Blocked, result.Stats.Performs, result.Stats.Failed)
	return nil
}

func buildTrace(ctx context.Context, st *store.Store, opts *TraceOptions) (TraceResult, error) {
	result := TraceResult{KeyMap: opts.KeyMap, Firing: opts.Firing, Entries: []TraceEntry{}}

	if opts.Firing != "" {
		f, err := st.ReadFiring(ctx, opts.Firing)
		if err != nil {
			return result, err
		}
		result.Entries = append(result.Entries, firingEntry(f))
		performs, err := st.ReadPerforms(ctx, opts.Firing)
		if err != nil {
			return result, err
		}
		for _, p := range performs {
			result.Entries = append(result.Entries, performEntry(p))
		}
		result.Stats = statsOf(result.Entries)
		return result, nil
	}

	entries, err := st.ReadJournal(ctx)
	if err != nil {
		return result, err
	}
	for _, e := range entries {
		var te TraceEntry
		if e.Firing != nil {
			te = firingEntry(*e.Firing)
		} else {
			te = performEntry(*e.Perform)
		}
		if opts.KeyMap != "" && te.KeyMap != opts.KeyMap {
			continue
		}
		result.Entries = append(result.Entries, te)
	}

	sum, err := st.Summarize(ctx, opts.KeyMap)
	if err != nil {
		return result, err
	}
	result.Stats = TraceStats{
		Firings:  sum.Firings,
		Blocked:  sum.Blocked,
		Performs: sum.Performs,
		Failed:   sum.Failed,
		LastSeq:  sum.LastSeq,
	}
	return result, nil
}

func firingEntry(f store.Firing) TraceEntry {
	return TraceEntry{
		Seq:         f.Seq,
		Type:        "firing",
		At:          f.At,
		KeyMap:      f.KeyMapUID,
		FiringID:    f.ID,
		Trigger:     f.Trigger,
		Signal:      f.Kind,
		Satisfied:   f.Satisfied,
		FromRelease: f.FromRelease,
	}
}

func performEntry(p store.Perform) TraceEntry {
	data := p.Action
	return TraceEntry{
		Seq:      p.Seq,
		Type:     "perform",
		At:       p.At,
		KeyMap:   p.KeyMapUID,
		FiringID: p.FiringID,
		Action:   &data,
		Event:    p.Event.String(),
		Error:    p.Error,
	}
}

// statsOf counts entries for a single firing, where no store summary
// applies.
func statsOf(entries []TraceEntry) TraceStats {
	var s TraceStats
	for _, e := range entries {
		s.LastSeq = max(s.LastSeq, e.Seq)
		if e.Type == "firing" {
			s.Firings++
			if e.Signal == store.KindFired && !e.Satisfied {
				s.Blocked++
			}
			continue
		}
		s.Performs++
		if e.Error != "" {
			s.Failed++
		}
	}
	return s
}
