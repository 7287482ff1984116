package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firing(seq int64, keymap, signal string, satisfied bool) TraceEvent {
	return TraceEvent{
		Type:      EventFiring,
		Seq:       seq,
		KeyMap:    keymap,
		FiringID:  "firing-" + keymap,
		Signal:    signal,
		Satisfied: satisfied,
	}
}

func perform(seq int64, keymap, event, act string) TraceEvent {
	return TraceEvent{Type: EventPerform, Seq: seq, KeyMap: keymap, Event: event, Action: act}
}

// sampleTrace is a tap on "volume" followed by a held "shift" and a blocked
// "media" firing.
func sampleTrace() []TraceEvent {
	return []TraceEvent{
		firing(1, "volume", "fired", true),
		perform(2, "volume", "DOWN_UP", "key_event(25)"),
		firing(3, "volume", "released", true),
		firing(4, "shift", "fired", true),
		perform(5, "shift", "DOWN", "key_event(59)"),
		firing(6, "media", "fired", false),
		firing(7, "shift", "released", true),
		perform(8, "shift", "UP", "key_event(59)"),
	}
}

func TestAssertPerformed(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"action only", Assertion{Action: "key_event(25)"}, true},
		{"action and event", Assertion{Action: "key_event(59)", Event: "UP"}, true},
		{"wrong event", Assertion{Action: "key_event(25)", Event: "DOWN"}, false},
		{"keymap filter", Assertion{Action: "key_event(59)", KeyMap: "shift"}, true},
		{"wrong keymap", Assertion{Action: "key_event(59)", KeyMap: "volume"}, false},
		{"missing action", Assertion{Action: "app(com.camera)"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Type = AssertPerformed
			err := assertPerformed(trace, tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertPerformed, ae.Type)
			assert.Equal(t, "not found in trace", ae.Actual)
		})
	}
}

func TestAssertPerformOrder_Correct(t *testing.T) {
	err := assertPerformOrder(sampleTrace(), Assertion{
		Performs: []string{"DOWN_UP key_event(25)", "DOWN key_event(59)", "UP key_event(59)"},
	})
	assert.NoError(t, err)
}

func TestAssertPerformOrder_InterveningPerformsAllowed(t *testing.T) {
	err := assertPerformOrder(sampleTrace(), Assertion{
		Performs: []string{"DOWN_UP key_event(25)", "UP key_event(59)"},
	})
	assert.NoError(t, err)
}

func TestAssertPerformOrder_WrongOrder(t *testing.T) {
	err := assertPerformOrder(sampleTrace(), Assertion{
		Performs: []string{"UP key_event(59)", "DOWN key_event(59)"},
	})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertPerformOrder, ae.Type)
	assert.Contains(t, ae.Actual, `"DOWN key_event(59)" not found after [UP key_event(59)]`)
}

func TestAssertPerformCount(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name  string
		a     Assertion
		count int
	}{
		{"all performs", Assertion{}, 3},
		{"by keymap", Assertion{KeyMap: "shift"}, 2},
		{"by action", Assertion{Action: "key_event(59)"}, 2},
		{"by action and event", Assertion{Action: "key_event(59)", Event: "DOWN"}, 1},
		{"by action and keymap", Assertion{Action: "key_event(59)", KeyMap: "volume"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Count = intPtr(tt.count)
			assert.NoError(t, assertPerformCount(trace, tt.a))

			tt.a.Count = intPtr(tt.count + 1)
			var ae *AssertionError
			require.ErrorAs(t, assertPerformCount(trace, tt.a), &ae)
			assert.Equal(t, AssertPerformCount, ae.Type)
		})
	}
}

func TestAssertFiringCount(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name  string
		a     Assertion
		count int
	}{
		{"all firings", Assertion{}, 5},
		{"fired", Assertion{Signal: "fired"}, 3},
		{"released", Assertion{Signal: "released"}, 2},
		{"blocked", Assertion{Signal: "blocked"}, 1},
		{"keymap", Assertion{KeyMap: "shift"}, 2},
		{"keymap and signal", Assertion{KeyMap: "media", Signal: "blocked"}, 1},
		{"unknown keymap", Assertion{KeyMap: "camera"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Count = intPtr(tt.count)
			assert.NoError(t, assertFiringCount(trace, tt.a))

			tt.a.Count = intPtr(tt.count + 1)
			assert.Error(t, assertFiringCount(trace, tt.a))
		})
	}
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.Idle = true

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertPerformed, Action: "key_event(25)"},
		{Type: AssertPerformOrder, Performs: []string{"DOWN key_event(59)", "UP key_event(59)"}},
		{Type: AssertPerformCount, Count: intPtr(3)},
		{Type: AssertFiringCount, Signal: "blocked", Count: intPtr(1)},
		{Type: AssertIdle},
	}, nil)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertPerformed, Action: "key_event(25)"},
		{Type: AssertPerformed, Action: "app(com.camera)"},
		{Type: AssertIdle},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "perform of app(com.camera)")
	assert.Contains(t, errs[1], "engine busy at end of scenario")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "final_state"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "final_state"`)
}

func TestEvaluateAssertions_JournalWithoutStore(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertJournal, Expect: map[string]int{"firings": 0}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "journal requires a store")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertPerformed,
		Expected: "perform of key_event(25) DOWN_UP",
		Actual:   "not found in trace",
		Trace: []TraceEvent{
			{Type: EventFiring, Seq: 1, At: 500 * time.Millisecond, KeyMap: "volume", FiringID: "firing-1", Signal: "fired", Satisfied: true},
		},
	}

	want := "Assertion failed: performed\n" +
		"  Expected: perform of key_event(25) DOWN_UP\n" +
		"  Actual: not found in trace\n" +
		"\nFull trace:\n" +
		"  500ms #1 fired volume firing-1\n"
	assert.Equal(t, want, err.Error())
}

func TestTraceEvent_String(t *testing.T) {
	tests := []struct {
		name string
		e    TraceEvent
		want string
	}{
		{
			name: "fired",
			e:    TraceEvent{Type: EventFiring, Seq: 1, KeyMap: "volume", FiringID: "firing-1", Signal: "fired", Satisfied: true},
			want: "0s #1 fired volume firing-1",
		},
		{
			name: "blocked",
			e:    TraceEvent{Type: EventFiring, Seq: 2, At: time.Second, KeyMap: "media", FiringID: "firing-2", Signal: "fired"},
			want: "1s #2 fired media firing-2 blocked",
		},
		{
			name: "released is never blocked",
			e:    TraceEvent{Type: EventFiring, Seq: 3, KeyMap: "media", FiringID: "firing-3", Signal: "released"},
			want: "0s #3 released media firing-3",
		},
		{
			name: "from release",
			e:    TraceEvent{Type: EventFiring, Seq: 4, KeyMap: "double", FiringID: "firing-4", Signal: "fired", Satisfied: true, FromRelease: true},
			want: "0s #4 fired double firing-4 from_release",
		},
		{
			name: "perform",
			e:    TraceEvent{Type: EventPerform, Seq: 5, At: 50 * time.Millisecond, KeyMap: "shift", Event: "DOWN", Action: "key_event(59)"},
			want: "50ms #5 perform shift DOWN key_event(59)",
		},
		{
			name: "failed perform",
			e:    TraceEvent{Type: EventPerform, Seq: 6, KeyMap: "backup", Event: "DOWN_UP", Action: `shell("x")`, Error: "denied"},
			want: `0s #6 perform backup DOWN_UP shell("x") error="denied"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.String())
		})
	}
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("boom")
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"boom"}, result.Errors)
}

func TestResult_PerformsAndRender(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()[:3]

	performs := result.Performs()
	require.Len(t, performs, 1)
	assert.Equal(t, "DOWN_UP key_event(25)", performs[0].PerformKey())

	assert.Equal(t,
		"0s #1 fired volume firing-volume\n"+
			"0s #2 perform volume DOWN_UP key_event(25)\n"+
			"0s #3 released volume firing-volume\n",
		result.Render())
}
