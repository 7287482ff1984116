package action

import (
	"cmp"
	"time"
)

// Compare is a total order over actions: payload first, then options.
func Compare(a, b Action) int {
	if c := CompareData(a.Data, b.Data); c != 0 {
		return c
	}
	if c := compareBool(a.HoldDown, b.HoldDown); c != 0 {
		return c
	}
	if c := compareBool(a.Repeat, b.Repeat); c != 0 {
		return c
	}
	if c := cmp.Compare(a.RepeatMode, b.RepeatMode); c != 0 {
		return c
	}
	if c := compareInt(a.RepeatLimit, b.RepeatLimit); c != 0 {
		return c
	}
	if c := compareInt(a.Multiplier, b.Multiplier); c != 0 {
		return c
	}
	for _, pair := range [][2]*time.Duration{
		{a.RepeatRate, b.RepeatRate},
		{a.RepeatDelay, b.RepeatDelay},
		{a.HoldDownDuration, b.HoldDownDuration},
		{a.DelayBeforeNextAction, b.DelayBeforeNextAction},
	} {
		if c := compareDuration(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	return compareBool(a.StopHoldDownWhenTriggerPressedAgain, b.StopHoldDownWhenTriggerPressedAgain)
}

// CompareLists orders action lists element-wise; a shorter list that is a
// prefix of a longer one sorts first.
func CompareLists(a, b []Action) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// EqualLists reports whether two action lists are identical under Compare.
func EqualLists(a, b []Action) bool {
	return CompareLists(a, b) == 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareInt(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}

func compareDuration(a, b *time.Duration) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}
