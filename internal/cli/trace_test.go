package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/store"
)

// journalDB runs the chord config once with --db and returns the path.
func journalDB(t *testing.T) string {
	t.Helper()
	path := writeConfig(t, "chord.yaml", chordConfig)
	db := filepath.Join(t.TempDir(), "journal.db")
	runDirect(t, &RunOptions{Config: path, Database: db}, chordInput)
	return db
}

func TestTrace_Text(t *testing.T) {
	db := journalDB(t)

	out, _, err := execute(t, "", "trace", "--db", db)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "#1 ")
	assert.Contains(t, lines[0], "fired chord f-1")
	assert.Contains(t, lines[1], "perform chord DOWN key_event(113) (f-1)")
	assert.Contains(t, lines[2], "released chord f-2")
	assert.Contains(t, lines[3], "perform chord UP key_event(113) (f-2)")
	assert.Empty(t, lines[4])
	assert.Equal(t, "Firings: 2 (0 blocked), performs: 2 (0 failed)", lines[5])
}

func TestTrace_JSON(t *testing.T) {
	db := journalDB(t)

	out, _, err := execute(t, "", "--format", "json", "trace", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Entries, 4)
	assert.Equal(t, "firing", resp.Data.Entries[0].Type)
	assert.True(t, resp.Data.Entries[0].Satisfied)
	assert.Equal(t, "perform", resp.Data.Entries[1].Type)
	require.NotNil(t, resp.Data.Entries[1].Action)
	assert.Equal(t, 113, resp.Data.Entries[1].Action.KeyCode)
	assert.Equal(t, TraceStats{Firings: 2, Performs: 2, LastSeq: 4}, resp.Data.Stats)
}

func TestTrace_FiringFilter(t *testing.T) {
	db := journalDB(t)

	out, _, err := execute(t, "", "--format", "json", "trace", "--db", db, "--firing", "f-2")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Entries, 2)
	assert.Equal(t, "released", resp.Data.Entries[0].Signal)
	assert.Equal(t, "UP", resp.Data.Entries[1].Event)
	assert.Equal(t, TraceStats{Firings: 1, Performs: 1, LastSeq: 4}, resp.Data.Stats)
}

func TestTrace_KeyMapFilter(t *testing.T) {
	db := journalDB(t)

	out, _, err := execute(t, "", "trace", "--db", db, "--keymap", "other")
	require.NoError(t, err)
	assert.Equal(t, "No journal entries.\n", out)
}

func TestTrace_UnknownFiring(t *testing.T) {
	db := journalDB(t)

	_, _, err := execute(t, "", "trace", "--db", db, "--firing", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTrace_Errors(t *testing.T) {
	t.Run("missing db flag", func(t *testing.T) {
		_, _, err := execute(t, "", "trace")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required flag")
	})

	t.Run("database not found", func(t *testing.T) {
		out, _, err := execute(t, "", "trace", "--db", filepath.Join(t.TempDir(), "none.db"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E_NOT_FOUND]")
	})
}

func TestTraceEntry_String(t *testing.T) {
	at := time.Date(2026, 1, 1, 10, 30, 0, 5_000_000, time.UTC)
	tap := action.KeyEvent(25)

	tests := []struct {
		name  string
		entry TraceEntry
		want  string
	}{
		{
			name:  "fired",
			entry: TraceEntry{Seq: 1, Type: "firing", At: at, KeyMap: "vol", FiringID: "f-1", Trigger: "t", Signal: store.KindFired, Satisfied: true},
			want:  "#1 10:30:00.005 fired vol f-1 t",
		},
		{
			name:  "blocked",
			entry: TraceEntry{Seq: 2, Type: "firing", At: at, KeyMap: "vol", FiringID: "f-2", Trigger: "t", Signal: store.KindFired},
			want:  "#2 10:30:00.005 fired vol f-2 t blocked",
		},
		{
			name:  "released from release",
			entry: TraceEntry{Seq: 3, Type: "firing", At: at, KeyMap: "vol", FiringID: "f-3", Trigger: "t", Signal: store.KindReleased, Satisfied: true, FromRelease: true},
			want:  "#3 10:30:00.005 released vol f-3 t from_release",
		},
		{
			name:  "perform",
			entry: TraceEntry{Seq: 4, Type: "perform", At: at, KeyMap: "vol", FiringID: "f-1", Action: &tap, Event: "DOWN_UP"},
			want:  "#4 10:30:00.005 perform vol DOWN_UP key_event(25) (f-1)",
		},
		{
			name:  "failed teardown perform",
			entry: TraceEntry{Seq: 5, Type: "perform", At: at, KeyMap: "vol", Action: &tap, Event: "UP", Error: "boom"},
			want:  `#5 10:30:00.005 perform vol UP key_event(25) error="boom"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.String())
		})
	}
}
