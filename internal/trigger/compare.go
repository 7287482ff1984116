package trigger

import (
	"cmp"
	"time"
)

// CompareKeys is a total order over trigger keys: key code, click type,
// device kind, device descriptor, scan code, then consume flag.
func CompareKeys(a, b Key) int {
	if c := cmp.Compare(a.KeyCode, b.KeyCode); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ClickType, b.ClickType); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Device.Kind, b.Device.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Device.Descriptor, b.Device.Descriptor); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ScanCode, b.ScanCode); c != 0 {
		return c
	}
	return compareBool(a.Consume, b.Consume)
}

// Compare is a total order over triggers. Keys are compared position by
// position so that sequence order is significant; a trigger that is a prefix
// of another sorts first. Ties are broken by mode and timing overrides.
func Compare(a, b Trigger) int {
	n := min(len(a.Keys), len(b.Keys))
	for i := 0; i < n; i++ {
		if c := CompareKeys(a.Keys[i], b.Keys[i]); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(len(a.Keys), len(b.Keys)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Mode.Kind, b.Mode.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Mode.ClickType, b.Mode.ClickType); c != 0 {
		return c
	}
	if c := compareDuration(a.LongPressDelay, b.LongPressDelay); c != 0 {
		return c
	}
	if c := compareDuration(a.DoublePressDelay, b.DoublePressDelay); c != 0 {
		return c
	}
	return compareDuration(a.SequenceTimeout, b.SequenceTimeout)
}

// Equal reports whether two triggers are identical under Compare.
func Equal(a, b Trigger) bool {
	return Compare(a, b) == 0
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

// nil sorts before any value.
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
