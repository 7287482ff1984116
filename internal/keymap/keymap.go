// Package keymap binds triggers to action lists and constraint gates.
package keymap

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/constraint"
	"github.com/roach88/keyflow/internal/trigger"
)

// KeyMap is one binding.
type KeyMap struct {
	UID         string
	Name        string
	Enabled     bool
	Trigger     trigger.Trigger
	Actions     []action.Action
	Constraints constraint.State

	// GroupUID is empty for key maps outside any group.
	GroupUID string
}

// Group scopes a set of key maps under shared constraints. Groups nest: a
// key map is gated by its own group and every ancestor.
type Group struct {
	UID         string
	Name        string
	ParentUID   string
	Constraints constraint.State
}

// Set is a loaded configuration of key maps and groups.
type Set struct {
	KeyMaps []KeyMap
	Groups  []Group
}

// Enabled returns the enabled key maps in file order.
func (s *Set) Enabled() []KeyMap {
	var out []KeyMap
	for _, km := range s.KeyMaps {
		if km.Enabled {
			out = append(out, km)
		}
	}
	return out
}

// Lookup returns the key map with the given UID.
func (s *Set) Lookup(uid string) (KeyMap, bool) {
	i := slices.IndexFunc(s.KeyMaps, func(km KeyMap) bool { return km.UID == uid })
	if i < 0 {
		return KeyMap{}, false
	}
	return s.KeyMaps[i], true
}

// Gate returns the constraint states that must all hold for km to run:
// its own followed by its group chain from the innermost group outwards.
func (s *Set) Gate(km KeyMap) ([]constraint.State, error) {
	states := []constraint.State{km.Constraints}
	groups := make(map[string]Group, len(s.Groups))
	for _, g := range s.Groups {
		groups[g.UID] = g
	}

	seen := make(map[string]bool)
	for uid := km.GroupUID; uid != ""; {
		if seen[uid] {
			return nil, fmt.Errorf("group %q: parent cycle", uid)
		}
		seen[uid] = true
		g, ok := groups[uid]
		if !ok {
			return nil, fmt.Errorf("key map %q: unknown group %q", km.UID, uid)
		}
		states = append(states, g.Constraints)
		uid = g.ParentUID
	}
	return states, nil
}

// Validate checks UIDs, group references and every binding.
func (s *Set) Validate() error {
	groupUIDs := make(map[string]bool, len(s.Groups))
	for i, g := range s.Groups {
		if g.UID == "" {
			return fmt.Errorf("groups[%d]: missing uid", i)
		}
		if groupUIDs[g.UID] {
			return fmt.Errorf("groups[%d]: duplicate uid %q", i, g.UID)
		}
		groupUIDs[g.UID] = true
	}
	for i, g := range s.Groups {
		if g.ParentUID != "" && !groupUIDs[g.ParentUID] {
			return fmt.Errorf("groups[%d]: unknown parent %q", i, g.ParentUID)
		}
	}

	uids := make(map[string]bool, len(s.KeyMaps))
	for i, km := range s.KeyMaps {
		if km.UID == "" {
			return fmt.Errorf("keymaps[%d]: missing uid", i)
		}
		if uids[km.UID] {
			return fmt.Errorf("keymaps[%d]: duplicate uid %q", i, km.UID)
		}
		uids[km.UID] = true

		if err := km.Trigger.Validate(); err != nil {
			return fmt.Errorf("keymaps[%d].trigger: %w", i, err)
		}
		for j, a := range km.Actions {
			if err := a.Validate(); err != nil {
				return fmt.Errorf("keymaps[%d].actions[%d]: %w", i, j, err)
			}
		}
		if _, err := s.Gate(km); err != nil {
			return fmt.Errorf("keymaps[%d]: %w", i, err)
		}
	}
	return nil
}

// Compare orders key maps by trigger, then action list, then UID.
func Compare(a, b KeyMap) int {
	if c := trigger.Compare(a.Trigger, b.Trigger); c != 0 {
		return c
	}
	if c := action.CompareLists(a.Actions, b.Actions); c != 0 {
		return c
	}
	return cmp.Compare(a.UID, b.UID)
}

// Sorted returns a copy of kms in Compare order.
func Sorted(kms []KeyMap) []KeyMap {
	out := slices.Clone(kms)
	slices.SortStableFunc(out, Compare)
	return out
}
