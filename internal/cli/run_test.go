package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyflow/internal/engine"
	"github.com/roach88/keyflow/internal/store"
)

const chordConfig = `
keymaps:
  - uid: chord
    trigger:
      mode: parallel
      keys:
        - key_code: 24
          consume: true
        - key_code: 25
          consume: true
    actions:
      - kind: key_event
        key_code: 113
        hold_down: true
`

const chordInput = `{"key_code": 24, "down": true}
{"key_code": 25, "down": true}
{"key_code": 25, "down": false}
{"key_code": 24, "down": false}
`

// runDirect runs the engine with deterministic firing IDs and returns the
// decoded output lines.
func runDirect(t *testing.T, opts *RunOptions, stdin string) []OutputLine {
	t.Helper()
	if opts.RootOptions == nil {
		opts.RootOptions = &RootOptions{Format: "text"}
	}
	if opts.IDs == nil {
		opts.IDs = engine.NewSequenceGenerator("f")
	}

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, runEngine(opts, cmd))
	return decodeLines(t, out.String())
}

func decodeLines(t *testing.T, s string) []OutputLine {
	t.Helper()
	var lines []OutputLine
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		var line OutputLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line), "line %q", scanner.Text())
		lines = append(lines, line)
	}
	return lines
}

func TestRun_TapPerformsAction(t *testing.T) {
	stdin := `{"key_code": 24, "down": true}
{"key_code": 24, "down": false}
`
	out, _, err := execute(t, stdin, "run", "--config", volumeConfig)
	require.NoError(t, err)

	lines := decodeLines(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "perform", lines[0].Type)
	assert.Equal(t, "DOWN_UP", lines[0].Event)
	require.NotNil(t, lines[0].Action)
	assert.Equal(t, "key_event(25)", lines[0].Action.String())
}

func TestRun_UnmatchedKeysProduceNothing(t *testing.T) {
	stdin := `{"key_code": 30, "down": true}
{"key_code": 30, "down": false}
`
	out, _, err := execute(t, stdin, "run", "--config", volumeConfig)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRun_SkipsMalformedLines(t *testing.T) {
	stdin := `not json
{"key_code": 0, "down": true}

{"key_code": 24, "down": true}
{"key_code": 24, "down": false}
`
	out, _, err := execute(t, stdin, "run", "--config", volumeConfig)
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, out), 1)
}

func TestRun_Firings(t *testing.T) {
	path := writeConfig(t, "chord.yaml", chordConfig)

	lines := runDirect(t, &RunOptions{Config: path, Firings: true}, chordInput)
	require.Len(t, lines, 4)

	assert.Equal(t, "firing", lines[0].Type)
	assert.Equal(t, "f-1", lines[0].FiringID)
	assert.Equal(t, "chord", lines[0].KeyMap)
	assert.Equal(t, "fired", lines[0].Signal)
	require.NotNil(t, lines[0].Satisfied)
	assert.True(t, *lines[0].Satisfied)

	assert.Equal(t, "perform", lines[1].Type)
	assert.Equal(t, "DOWN", lines[1].Event)

	assert.Equal(t, "firing", lines[2].Type)
	assert.Equal(t, "f-2", lines[2].FiringID)
	assert.Equal(t, "released", lines[2].Signal)

	assert.Equal(t, "perform", lines[3].Type)
	assert.Equal(t, "UP", lines[3].Event)
}

func TestRun_BlockedByFacts(t *testing.T) {
	cfg := writeConfig(t, "keymaps.yaml", `
keymaps:
  - uid: charging_only
    trigger:
      keys:
        - key_code: 24
    actions:
      - kind: key_event
        key_code: 25
    constraints:
      list:
        - kind: charging
`)
	facts := writeConfig(t, "facts.yaml", "charging: false\n")

	stdin := `{"key_code": 24, "down": true}
{"key_code": 24, "down": false}
`
	lines := runDirect(t, &RunOptions{Config: cfg, Facts: facts, Firings: true}, stdin)

	var performs int
	for _, l := range lines {
		if l.Type == "perform" {
			performs++
		}
	}
	assert.Zero(t, performs)
	require.NotEmpty(t, lines)
	assert.Equal(t, "fired", lines[0].Signal)
	require.NotNil(t, lines[0].Satisfied)
	assert.False(t, *lines[0].Satisfied)
}

func TestRun_JournalsToDatabase(t *testing.T) {
	path := writeConfig(t, "chord.yaml", chordConfig)
	db := filepath.Join(t.TempDir(), "journal.db")

	runDirect(t, &RunOptions{Config: path, Database: db}, chordInput)
	// A second run continues the journal sequence.
	runDirect(t, &RunOptions{Config: path, Database: db, IDs: engine.NewSequenceGenerator("g")}, chordInput)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	sum, err := st.Summarize(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Firings)
	assert.Equal(t, 4, sum.Performs)
	assert.Equal(t, int64(8), sum.LastSeq)

	f, err := st.ReadFiring(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.Seq)
}

func TestRun_Errors(t *testing.T) {
	t.Run("missing config flag", func(t *testing.T) {
		_, _, err := execute(t, "", "run")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required flag")
		assert.Contains(t, err.Error(), "config")
	})

	t.Run("invalid config", func(t *testing.T) {
		path := writeConfig(t, "bad.yaml", "keymaps: [")
		_, errOut, err := execute(t, "", "run", "--config", path)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, errOut, "Error [E003]")
	})

	t.Run("missing config file", func(t *testing.T) {
		_, _, err := execute(t, "", "run", "--config", filepath.Join(t.TempDir(), "none.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("missing facts file", func(t *testing.T) {
		_, errOut, err := execute(t, "", "run", "--config", volumeConfig, "--facts", filepath.Join(t.TempDir(), "none.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, errOut, "Error [E001]")
	})
}

func TestKeyEventLine_ToEvent(t *testing.T) {
	internal := KeyEventLine{KeyCode: 24, Down: true}.toEvent()
	assert.Equal(t, 24, internal.KeyCode)
	assert.True(t, internal.Down)
	assert.False(t, internal.Device.External)

	external := KeyEventLine{KeyCode: 24, Device: "pedal-1", MetaState: 1}.toEvent()
	assert.True(t, external.Device.External)
	assert.Equal(t, "pedal-1", external.Device.Descriptor)
	assert.Equal(t, 1, external.MetaState)
	assert.False(t, external.Down)
}
