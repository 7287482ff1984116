package keymap

import (
	"reflect"
	"slices"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/trigger"
)

// Diff lists, by UID, how the enabled bindings of two sets differ. A binding
// counts as changed when its trigger, actions or effective gate differ.
type Diff struct {
	Added     []string
	Removed   []string
	Changed   []string
	Unchanged []string
}

// Empty reports whether nothing was added, removed or changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compute diffs the enabled key maps of old and next. Every slice of the
// result is sorted.
func Compute(old, next *Set) Diff {
	var d Diff
	before := index(old)
	after := index(next)

	for uid, km := range after {
		prev, ok := before[uid]
		switch {
		case !ok:
			d.Added = append(d.Added, uid)
		case sameBinding(old, prev, next, km):
			d.Unchanged = append(d.Unchanged, uid)
		default:
			d.Changed = append(d.Changed, uid)
		}
	}
	for uid := range before {
		if _, ok := after[uid]; !ok {
			d.Removed = append(d.Removed, uid)
		}
	}

	slices.Sort(d.Added)
	slices.Sort(d.Removed)
	slices.Sort(d.Changed)
	slices.Sort(d.Unchanged)
	return d
}

func index(s *Set) map[string]KeyMap {
	out := make(map[string]KeyMap)
	if s == nil {
		return out
	}
	for _, km := range s.Enabled() {
		out[km.UID] = km
	}
	return out
}

func sameBinding(oldSet *Set, a KeyMap, newSet *Set, b KeyMap) bool {
	if !trigger.Equal(a.Trigger, b.Trigger) || !action.EqualLists(a.Actions, b.Actions) {
		return false
	}
	ga, errA := oldSet.Gate(a)
	gb, errB := newSet.Gate(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(ga, gb)
}
