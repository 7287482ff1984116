// Package constraint evaluates boolean predicates over a point-in-time view
// of device state. Key maps use them to decide whether a fired trigger may
// run its actions.
package constraint

import "fmt"

// Data is the predicate carried by a Constraint. It is a sealed interface:
// only the types in this file implement it, and IsSatisfied switches over
// all of them.
type Data interface {
	// Kind is the stable config name of the predicate.
	Kind() string
	constraintData()
}

// Constraint is one predicate in a State.
type Constraint struct {
	UID  string
	Data Data
}

func (c Constraint) String() string {
	return fmt.Sprintf("%v", c.Data)
}

type AppInForeground struct{ Package string }
type AppNotInForeground struct{ Package string }
type AppPlayingMedia struct{ Package string }
type AppNotPlayingMedia struct{ Package string }
type MediaPlaying struct{}
type NoMediaPlaying struct{}

type BtDeviceConnected struct {
	Address string
	Name    string
}

type BtDeviceDisconnected struct {
	Address string
	Name    string
}

type ScreenOn struct{}
type ScreenOff struct{}

type OrientationPortrait struct{}
type OrientationLandscape struct{}
type OrientationCustom struct{ Orientation Orientation }

type FlashlightOn struct{ Lens Lens }
type FlashlightOff struct{ Lens Lens }

type WifiOn struct{}
type WifiOff struct{}

// WifiConnected with a nil SSID means connected to any network.
type WifiConnected struct{ SSID *string }

// WifiDisconnected with a nil SSID means connected to no network.
type WifiDisconnected struct{ SSID *string }

type ImeChosen struct {
	ImeID string
	Label string
}

type ImeNotChosen struct {
	ImeID string
	Label string
}

type DeviceLocked struct{}
type DeviceUnlocked struct{}
type LockScreenShowing struct{}
type LockScreenNotShowing struct{}

type InPhoneCall struct{}
type NotInPhoneCall struct{}
type PhoneRinging struct{}

type Charging struct{}
type Discharging struct{}

type HingeClosed struct{}
type HingeOpen struct{}

// Time is satisfied strictly between Start and End. A window whose start is
// after its end wraps past midnight.
type Time struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (AppInForeground) Kind() string      { return "app_in_foreground" }
func (AppNotInForeground) Kind() string   { return "app_not_in_foreground" }
func (AppPlayingMedia) Kind() string      { return "app_playing_media" }
func (AppNotPlayingMedia) Kind() string   { return "app_not_playing_media" }
func (MediaPlaying) Kind() string         { return "media_playing" }
func (NoMediaPlaying) Kind() string       { return "no_media_playing" }
func (BtDeviceConnected) Kind() string    { return "bt_device_connected" }
func (BtDeviceDisconnected) Kind() string { return "bt_device_disconnected" }
func (ScreenOn) Kind() string             { return "screen_on" }
func (ScreenOff) Kind() string            { return "screen_off" }
func (OrientationPortrait) Kind() string  { return "orientation_portrait" }
func (OrientationLandscape) Kind() string { return "orientation_landscape" }
func (OrientationCustom) Kind() string    { return "orientation_custom" }
func (FlashlightOn) Kind() string         { return "flashlight_on" }
func (FlashlightOff) Kind() string        { return "flashlight_off" }
func (WifiOn) Kind() string               { return "wifi_on" }
func (WifiOff) Kind() string              { return "wifi_off" }
func (WifiConnected) Kind() string        { return "wifi_connected" }
func (WifiDisconnected) Kind() string     { return "wifi_disconnected" }
func (ImeChosen) Kind() string            { return "ime_chosen" }
func (ImeNotChosen) Kind() string         { return "ime_not_chosen" }
func (DeviceLocked) Kind() string         { return "device_locked" }
func (DeviceUnlocked) Kind() string       { return "device_unlocked" }
func (LockScreenShowing) Kind() string    { return "lock_screen_showing" }
func (LockScreenNotShowing) Kind() string { return "lock_screen_not_showing" }
func (InPhoneCall) Kind() string          { return "in_phone_call" }
func (NotInPhoneCall) Kind() string       { return "not_in_phone_call" }
func (PhoneRinging) Kind() string         { return "phone_ringing" }
func (Charging) Kind() string             { return "charging" }
func (Discharging) Kind() string          { return "discharging" }
func (HingeClosed) Kind() string          { return "hinge_closed" }
func (HingeOpen) Kind() string            { return "hinge_open" }
func (Time) Kind() string                 { return "time" }

func (AppInForeground) constraintData()      {}
func (AppNotInForeground) constraintData()   {}
func (AppPlayingMedia) constraintData()      {}
func (AppNotPlayingMedia) constraintData()   {}
func (MediaPlaying) constraintData()         {}
func (NoMediaPlaying) constraintData()       {}
func (BtDeviceConnected) constraintData()    {}
func (BtDeviceDisconnected) constraintData() {}
func (ScreenOn) constraintData()             {}
func (ScreenOff) constraintData()            {}
func (OrientationPortrait) constraintData()  {}
func (OrientationLandscape) constraintData() {}
func (OrientationCustom) constraintData()    {}
func (FlashlightOn) constraintData()         {}
func (FlashlightOff) constraintData()        {}
func (WifiOn) constraintData()               {}
func (WifiOff) constraintData()              {}
func (WifiConnected) constraintData()        {}
func (WifiDisconnected) constraintData()     {}
func (ImeChosen) constraintData()            {}
func (ImeNotChosen) constraintData()         {}
func (DeviceLocked) constraintData()         {}
func (DeviceUnlocked) constraintData()       {}
func (LockScreenShowing) constraintData()    {}
func (LockScreenNotShowing) constraintData() {}
func (InPhoneCall) constraintData()          {}
func (NotInPhoneCall) constraintData()       {}
func (PhoneRinging) constraintData()         {}
func (Charging) constraintData()             {}
func (Discharging) constraintData()          {}
func (HingeClosed) constraintData()          {}
func (HingeOpen) constraintData()            {}
func (Time) constraintData()                 {}

// Mode combines the constraints of one State.
type Mode int

const (
	And Mode = iota
	Or
)

func (m Mode) String() string {
	if m == Or {
		return "or"
	}
	return "and"
}

// ParseMode parses "and" or "or". The empty string means And.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "and", "":
		return And, nil
	case "or":
		return Or, nil
	}
	return And, fmt.Errorf("unknown constraint mode %q", s)
}

// State is a set of constraints and the mode that combines them.
// An empty State is satisfied under either mode.
type State struct {
	Constraints []Constraint
	Mode        Mode
}

// IsEmpty reports whether the state has no constraints.
func (s State) IsEmpty() bool {
	return len(s.Constraints) == 0
}
