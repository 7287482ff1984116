package trigger

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func short(code int) Key { return Key{KeyCode: code, ClickType: ShortPress} }

func TestValidate(t *testing.T) {
	neg := -time.Millisecond

	tests := []struct {
		name    string
		trigger Trigger
		field   string
	}{
		{"single ok", Trigger{Keys: []Key{short(24)}, Mode: SingleMode()}, ""},
		{"single with two keys", Trigger{Keys: []Key{short(24), short(25)}, Mode: SingleMode()}, "keys"},
		{"single with no keys", Trigger{Mode: SingleMode()}, "keys"},
		{"sequence ok", Trigger{Keys: []Key{short(24), short(25)}, Mode: SequenceMode()}, ""},
		{"sequence with one key", Trigger{Keys: []Key{short(24)}, Mode: SequenceMode()}, "keys"},
		{"parallel with zero keys", Trigger{Mode: ParallelMode(ShortPress)}, "keys"},
		{"parallel ok", Trigger{Keys: []Key{short(24), short(25)}, Mode: ParallelMode(ShortPress)}, ""},
		{"parallel double press", Trigger{
			Keys: []Key{{KeyCode: 24, ClickType: DoublePress}, {KeyCode: 25, ClickType: DoublePress}},
			Mode: ParallelMode(DoublePress),
		}, "mode"},
		{"parallel mixed click types", Trigger{
			Keys: []Key{short(24), {KeyCode: 25, ClickType: LongPress}},
			Mode: ParallelMode(ShortPress),
		}, "keys[1].click_type"},
		{"parallel duplicate key", Trigger{Keys: []Key{short(24), short(24)}, Mode: ParallelMode(ShortPress)}, "keys[1]"},
		{"external without descriptor", Trigger{
			Keys: []Key{{KeyCode: 24, Device: Device{Kind: DeviceExternal}}},
			Mode: SingleMode(),
		}, "keys[0].device"},
		{"negative override", Trigger{Keys: []Key{short(24)}, Mode: SingleMode(), LongPressDelay: &neg}, "long_press_delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trigger.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestDeviceMatches(t *testing.T) {
	assert.True(t, AnyDevice().Matches(false, ""))
	assert.True(t, AnyDevice().Matches(true, "kbd"))
	assert.True(t, InternalDevice().Matches(false, ""))
	assert.False(t, InternalDevice().Matches(true, "kbd"))
	assert.True(t, ExternalDevice("kbd").Matches(true, "kbd"))
	assert.False(t, ExternalDevice("kbd").Matches(true, "pad"))
	assert.False(t, ExternalDevice("kbd").Matches(false, "kbd"))
}

func TestConsumesKey(t *testing.T) {
	tr := Trigger{
		Keys: []Key{
			{KeyCode: 24, Consume: true},
			{KeyCode: 25, Consume: false},
		},
		Mode: ParallelMode(ShortPress),
	}
	assert.True(t, tr.ConsumesKey(24, false, ""))
	assert.False(t, tr.ConsumesKey(25, false, ""))
	assert.False(t, tr.ConsumesKey(26, false, ""))
}

func TestCompare_TotalOrder(t *testing.T) {
	a := Trigger{Keys: []Key{short(24)}, Mode: SingleMode()}
	b := Trigger{Keys: []Key{short(24), short(25)}, Mode: SequenceMode()}
	c := Trigger{Keys: []Key{short(25), short(24)}, Mode: SequenceMode()}
	d := Trigger{Keys: []Key{short(24), short(25)}, Mode: ParallelMode(ShortPress)}

	list := []Trigger{c, d, b, a}
	slices.SortFunc(list, Compare)

	assert.Equal(t, []Trigger{a, d, b, c}, list)
	assert.Zero(t, Compare(b, b))
	assert.Equal(t, -Compare(b, c), Compare(c, b))
}

func TestCompare_TimingOverrides(t *testing.T) {
	d := 600 * time.Millisecond
	base := Trigger{Keys: []Key{short(24)}, Mode: SingleMode()}
	withOverride := base
	withOverride.LongPressDelay = &d

	assert.Negative(t, Compare(base, withOverride))
	assert.False(t, Equal(base, withOverride))
	assert.True(t, Equal(base, Trigger{Keys: []Key{short(24)}, Mode: SingleMode()}))
}

func TestString(t *testing.T) {
	tr := Trigger{Keys: []Key{short(24), {KeyCode: 25, Device: ExternalDevice("kbd")}}, Mode: SequenceMode()}
	assert.Equal(t, "sequence[24/short/any -> 25/short/external:kbd]", tr.String())
}
