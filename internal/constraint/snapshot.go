package constraint

import (
	"fmt"
	"slices"
	"time"
)

// Orientation is the display rotation.
type Orientation int

const (
	Orientation0 Orientation = iota
	Orientation90
	Orientation180
	Orientation270
)

// ParseOrientation parses a rotation in degrees: "0", "90", "180" or "270".
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "0":
		return Orientation0, nil
	case "90":
		return Orientation90, nil
	case "180":
		return Orientation180, nil
	case "270":
		return Orientation270, nil
	}
	return Orientation0, fmt.Errorf("unknown orientation %q", s)
}

// Lens selects a camera flash.
type Lens int

const (
	LensBack Lens = iota
	LensFront
)

// ParseLens parses "back" or "front". The empty string means back.
func ParseLens(s string) (Lens, error) {
	switch s {
	case "back", "":
		return LensBack, nil
	case "front":
		return LensFront, nil
	}
	return LensBack, fmt.Errorf("unknown lens %q", s)
}

// CallState is the telephony state.
type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallInCall
)

// AudioStream is an audio output stream that can be active.
type AudioStream int

const (
	StreamMusic AudioStream = iota
	StreamVoiceCall
	StreamRing
)

// HingeState is the fold state of a foldable device.
type HingeState int

const (
	HingeUnavailable HingeState = iota
	HingeStateOpen
	HingeStateClosed
)

// SystemUIPackage is reported as the foreground app while the lock screen
// is on top.
const SystemUIPackage = "com.android.systemui"

// TimeOfDay is a wall-clock time as an offset from midnight.
type TimeOfDay time.Duration

// NewTimeOfDay builds a time of day from hours, minutes and seconds.
func NewTimeOfDay(h, m, s int) TimeOfDay {
	return TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// TimeOfDayOf returns the time of day of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return NewTimeOfDay(h, m, s) + TimeOfDay(time.Duration(t.Nanosecond()))
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q: want HH:MM or HH:MM:SS", s)
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Snapshot is a read-only view of device facts. Implementations must return
// the same answer for a fact every time it is asked during one evaluation.
type Snapshot interface {
	ForegroundApp() string
	AppsPlayingMedia() []string
	ActiveAudioStreams() []AudioStream
	ConnectedBluetoothDevices() []string
	Orientation() Orientation
	ScreenOn() bool
	FlashlightOn(lens Lens) bool
	WifiEnabled() bool
	// ConnectedSSID returns false when not connected to any network.
	ConnectedSSID() (string, bool)
	ChosenIME() string
	Locked() bool
	LockScreenShowing() bool
	CallState() CallState
	Charging() bool
	Hinge() HingeState
	LocalTime() TimeOfDay
}

// Provider hands out a fresh snapshot for each evaluation.
type Provider interface {
	Snapshot() Snapshot
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() Snapshot

// Snapshot implements Provider.
func (f ProviderFunc) Snapshot() Snapshot { return f() }

// Facts is an immutable Snapshot built from plain values.
type Facts struct {
	Foreground       string
	PlayingMedia     []string
	AudioStreams     []AudioStream
	BluetoothDevices []string
	Rotation         Orientation
	Screen           bool
	Flashlights      []Lens
	Wifi             bool
	SSID             string
	WifiConnected    bool
	IME              string
	DeviceLocked     bool
	LockScreen       bool
	Call             CallState
	PowerCharging    bool
	HingeState       HingeState
	Time             TimeOfDay
}

var _ Snapshot = Facts{}

func (f Facts) ForegroundApp() string                { return f.Foreground }
func (f Facts) AppsPlayingMedia() []string           { return f.PlayingMedia }
func (f Facts) ActiveAudioStreams() []AudioStream    { return f.AudioStreams }
func (f Facts) ConnectedBluetoothDevices() []string  { return f.BluetoothDevices }
func (f Facts) Orientation() Orientation             { return f.Rotation }
func (f Facts) ScreenOn() bool                       { return f.Screen }
func (f Facts) FlashlightOn(lens Lens) bool          { return slices.Contains(f.Flashlights, lens) }
func (f Facts) WifiEnabled() bool                    { return f.Wifi }
func (f Facts) ConnectedSSID() (string, bool)        { return f.SSID, f.WifiConnected }
func (f Facts) ChosenIME() string                    { return f.IME }
func (f Facts) Locked() bool                         { return f.DeviceLocked }
func (f Facts) LockScreenShowing() bool              { return f.LockScreen }
func (f Facts) CallState() CallState                 { return f.Call }
func (f Facts) Charging() bool                       { return f.PowerCharging }
func (f Facts) Hinge() HingeState                    { return f.HingeState }
func (f Facts) LocalTime() TimeOfDay                 { return f.Time }

// Static always returns the same snapshot.
type Static struct {
	Facts Facts
}

// Snapshot implements Provider.
func (s Static) Snapshot() Snapshot { return s.Facts }
