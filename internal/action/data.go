package action

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// Kind names the adapter that executes an action. The core never interprets
// it beyond ordering and modifier detection.
type Kind string

const (
	KindKeyEvent Kind = "key_event"
	KindApp      Kind = "app"
	KindText     Kind = "text"
	KindShell    Kind = "shell"
	KindIntent   Kind = "intent"
	KindSystem   Kind = "system"
)

// Data is the payload handed to the execution sink. Fields that do not apply
// to a kind are left zero.
type Data struct {
	Kind      Kind              `json:"kind"`
	KeyCode   int               `json:"key_code,omitempty"`
	MetaState int               `json:"meta_state,omitempty"`
	Package   string            `json:"package,omitempty"`
	Text      string            `json:"text,omitempty"`
	Extras    map[string]string `json:"extras,omitempty"`
}

// KeyEvent returns a key event payload.
func KeyEvent(keyCode int) Data {
	return Data{Kind: KindKeyEvent, KeyCode: keyCode}
}

// Validate checks that the payload carries what its kind needs.
func (d Data) Validate() error {
	switch d.Kind {
	case "":
		return fmt.Errorf("action kind is required")
	case KindKeyEvent:
		if d.KeyCode <= 0 {
			return fmt.Errorf("key_event action needs a positive key code, got %d", d.KeyCode)
		}
	case KindApp:
		if d.Package == "" {
			return fmt.Errorf("app action needs a package")
		}
	case KindText, KindShell:
		if d.Text == "" {
			return fmt.Errorf("%s action needs text", d.Kind)
		}
	}
	return nil
}

// Modifier key codes. These never auto-repeat.
const (
	KeyCodeAltLeft    = 57
	KeyCodeAltRight   = 58
	KeyCodeShiftLeft  = 59
	KeyCodeShiftRight = 60
	KeyCodeSym        = 63
	KeyCodeNum        = 78
	KeyCodeCtrlLeft   = 113
	KeyCodeCtrlRight  = 114
	KeyCodeMetaLeft   = 117
	KeyCodeMetaRight  = 118
	KeyCodeFunction   = 119
)

// IsModifierKey reports whether the key code is a modifier.
func IsModifierKey(keyCode int) bool {
	switch keyCode {
	case KeyCodeShiftLeft, KeyCodeShiftRight,
		KeyCodeAltLeft, KeyCodeAltRight,
		KeyCodeCtrlLeft, KeyCodeCtrlRight,
		KeyCodeMetaLeft, KeyCodeMetaRight,
		KeyCodeSym, KeyCodeNum, KeyCodeFunction:
		return true
	}
	return false
}

// IsModifierInput reports whether the payload injects a modifier key.
func (d Data) IsModifierInput() bool {
	return d.Kind == KindKeyEvent && IsModifierKey(d.KeyCode)
}

func (d Data) String() string {
	switch d.Kind {
	case KindKeyEvent:
		return fmt.Sprintf("key_event(%d)", d.KeyCode)
	case KindApp:
		return fmt.Sprintf("app(%s)", d.Package)
	case KindText, KindShell:
		return fmt.Sprintf("%s(%q)", d.Kind, d.Text)
	default:
		return string(d.Kind)
	}
}

// CompareData orders payloads by kind, then by the kind's identifying
// field, then by the remaining fields.
func CompareData(a, b Data) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.KeyCode, b.KeyCode); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Package, b.Package); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Text, b.Text); c != 0 {
		return c
	}
	if c := cmp.Compare(a.MetaState, b.MetaState); c != 0 {
		return c
	}
	return compareExtras(a.Extras, b.Extras)
}

func compareExtras(a, b map[string]string) int {
	ak := slices.Sorted(maps.Keys(a))
	bk := slices.Sorted(maps.Keys(b))
	if c := slices.Compare(ak, bk); c != 0 {
		return c
	}
	for _, k := range ak {
		if c := cmp.Compare(a[k], b[k]); c != 0 {
			return c
		}
	}
	return 0
}
