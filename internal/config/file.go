package config

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/constraint"
	"github.com/roach88/keyflow/internal/keymap"
	"github.com/roach88/keyflow/internal/trigger"
)

// File is the on-disk shape of a configuration, after schema defaults are
// applied. Durations are integer milliseconds.
type File struct {
	Defaults *DefaultsFile `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Groups   []GroupFile   `json:"groups,omitempty" yaml:"groups,omitempty"`
	KeyMaps  []KeyMapFile  `json:"keymaps" yaml:"keymaps"`
}

type DefaultsFile struct {
	LongPressDelayMS         *int `json:"long_press_delay_ms,omitempty" yaml:"long_press_delay_ms,omitempty"`
	DoublePressDelayMS       *int `json:"double_press_delay_ms,omitempty" yaml:"double_press_delay_ms,omitempty"`
	RepeatDelayMS            *int `json:"repeat_delay_ms,omitempty" yaml:"repeat_delay_ms,omitempty"`
	RepeatRateMS             *int `json:"repeat_rate_ms,omitempty" yaml:"repeat_rate_ms,omitempty"`
	SequenceTriggerTimeoutMS *int `json:"sequence_trigger_timeout_ms,omitempty" yaml:"sequence_trigger_timeout_ms,omitempty"`
	HoldDownDurationMS       *int `json:"hold_down_duration_ms,omitempty" yaml:"hold_down_duration_ms,omitempty"`
}

type GroupFile struct {
	UID         string           `json:"uid" yaml:"uid"`
	Name        string           `json:"name,omitempty" yaml:"name,omitempty"`
	Parent      string           `json:"parent,omitempty" yaml:"parent,omitempty"`
	Constraints *ConstraintsFile `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

type KeyMapFile struct {
	UID         string           `json:"uid,omitempty" yaml:"uid,omitempty"`
	Name        string           `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled     *bool            `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Group       string           `json:"group,omitempty" yaml:"group,omitempty"`
	Trigger     TriggerFile      `json:"trigger" yaml:"trigger"`
	Actions     []ActionFile     `json:"actions" yaml:"actions"`
	Constraints *ConstraintsFile `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

type TriggerFile struct {
	Mode               string    `json:"mode,omitempty" yaml:"mode,omitempty"`
	ClickType          string    `json:"click_type,omitempty" yaml:"click_type,omitempty"`
	Keys               []KeyFile `json:"keys" yaml:"keys"`
	LongPressDelayMS   *int      `json:"long_press_delay_ms,omitempty" yaml:"long_press_delay_ms,omitempty"`
	DoublePressDelayMS *int      `json:"double_press_delay_ms,omitempty" yaml:"double_press_delay_ms,omitempty"`
	SequenceTimeoutMS  *int      `json:"sequence_timeout_ms,omitempty" yaml:"sequence_timeout_ms,omitempty"`
}

type KeyFile struct {
	KeyCode    int    `json:"key_code" yaml:"key_code"`
	ScanCode   int    `json:"scan_code,omitempty" yaml:"scan_code,omitempty"`
	Device     string `json:"device,omitempty" yaml:"device,omitempty"`
	Descriptor string `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	ClickType  string `json:"click_type,omitempty" yaml:"click_type,omitempty"`
	Consume    bool   `json:"consume,omitempty" yaml:"consume,omitempty"`
}

type ActionFile struct {
	Kind      string            `json:"kind" yaml:"kind"`
	KeyCode   int               `json:"key_code,omitempty" yaml:"key_code,omitempty"`
	MetaState int               `json:"meta_state,omitempty" yaml:"meta_state,omitempty"`
	Package   string            `json:"package,omitempty" yaml:"package,omitempty"`
	Text      string            `json:"text,omitempty" yaml:"text,omitempty"`
	Extras    map[string]string `json:"extras,omitempty" yaml:"extras,omitempty"`

	HoldDown                  bool   `json:"hold_down,omitempty" yaml:"hold_down,omitempty"`
	Repeat                    bool   `json:"repeat,omitempty" yaml:"repeat,omitempty"`
	RepeatMode                string `json:"repeat_mode,omitempty" yaml:"repeat_mode,omitempty"`
	RepeatLimit               *int   `json:"repeat_limit,omitempty" yaml:"repeat_limit,omitempty"`
	RepeatRateMS              *int   `json:"repeat_rate_ms,omitempty" yaml:"repeat_rate_ms,omitempty"`
	RepeatDelayMS             *int   `json:"repeat_delay_ms,omitempty" yaml:"repeat_delay_ms,omitempty"`
	HoldDownDurationMS        *int   `json:"hold_down_duration_ms,omitempty" yaml:"hold_down_duration_ms,omitempty"`
	DelayBeforeNextActionMS   *int   `json:"delay_before_next_action_ms,omitempty" yaml:"delay_before_next_action_ms,omitempty"`
	Multiplier                *int   `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`

	StopHoldDownWhenPressedAgain bool `json:"stop_hold_down_when_trigger_pressed_again,omitempty" yaml:"stop_hold_down_when_trigger_pressed_again,omitempty"`
}

type ConstraintsFile struct {
	Mode string           `json:"mode,omitempty" yaml:"mode,omitempty"`
	List []ConstraintFile `json:"list" yaml:"list"`
}

type ConstraintFile struct {
	UID         string  `json:"uid,omitempty" yaml:"uid,omitempty"`
	Kind        string  `json:"kind" yaml:"kind"`
	Package     string  `json:"package,omitempty" yaml:"package,omitempty"`
	Address     string  `json:"address,omitempty" yaml:"address,omitempty"`
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	SSID        *string `json:"ssid,omitempty" yaml:"ssid,omitempty"`
	ImeID       string  `json:"ime_id,omitempty" yaml:"ime_id,omitempty"`
	Label       string  `json:"label,omitempty" yaml:"label,omitempty"`
	Orientation *int    `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	Lens        string  `json:"lens,omitempty" yaml:"lens,omitempty"`
	Start       string  `json:"start,omitempty" yaml:"start,omitempty"`
	End         string  `json:"end,omitempty" yaml:"end,omitempty"`
}

// apply overlays the file's defaults block on base.
func (f *DefaultsFile) apply(base Defaults) Defaults {
	if f == nil {
		return base
	}
	setMillis(&base.LongPressDelay, f.LongPressDelayMS)
	setMillis(&base.DoublePressDelay, f.DoublePressDelayMS)
	setMillis(&base.RepeatDelay, f.RepeatDelayMS)
	setMillis(&base.RepeatRate, f.RepeatRateMS)
	setMillis(&base.SequenceTriggerTimeout, f.SequenceTriggerTimeoutMS)
	setMillis(&base.HoldDownDuration, f.HoldDownDurationMS)
	return base
}

// toSet converts the file to the binding model. newUID fills in missing
// key map UIDs from the key map's index.
func (f *File) toSet(newUID func(index int) string) (*keymap.Set, error) {
	s := &keymap.Set{}
	for i, g := range f.Groups {
		state, err := g.Constraints.toState()
		if err != nil {
			return nil, fmt.Errorf("groups[%d].constraints: %w", i, err)
		}
		s.Groups = append(s.Groups, keymap.Group{
			UID:         nfc(g.UID),
			Name:        nfc(g.Name),
			ParentUID:   nfc(g.Parent),
			Constraints: state,
		})
	}

	for i, kf := range f.KeyMaps {
		km, err := kf.toKeyMap(func() string { return newUID(i) })
		if err != nil {
			return nil, fmt.Errorf("keymaps[%d].%w", i, err)
		}
		s.KeyMaps = append(s.KeyMaps, km)
	}
	return s, nil
}

func (kf KeyMapFile) toKeyMap(newUID func() string) (keymap.KeyMap, error) {
	trig, err := kf.Trigger.toTrigger()
	if err != nil {
		return keymap.KeyMap{}, fmt.Errorf("trigger: %w", err)
	}

	actions := make([]action.Action, 0, len(kf.Actions))
	for j, af := range kf.Actions {
		a, err := af.toAction()
		if err != nil {
			return keymap.KeyMap{}, fmt.Errorf("actions[%d]: %w", j, err)
		}
		actions = append(actions, a)
	}

	state, err := kf.Constraints.toState()
	if err != nil {
		return keymap.KeyMap{}, fmt.Errorf("constraints: %w", err)
	}

	uid := nfc(kf.UID)
	if uid == "" {
		uid = newUID()
	}
	return keymap.KeyMap{
		UID:         uid,
		Name:        nfc(kf.Name),
		Enabled:     kf.Enabled == nil || *kf.Enabled,
		Trigger:     trig,
		Actions:     actions,
		Constraints: state,
		GroupUID:    nfc(kf.Group),
	}, nil
}

func (tf TriggerFile) toTrigger() (trigger.Trigger, error) {
	var t trigger.Trigger
	switch tf.Mode {
	case "single", "":
		t.Mode = trigger.SingleMode()
	case "sequence":
		t.Mode = trigger.SequenceMode()
	case "parallel":
		click, err := trigger.ParseClickType(tf.ClickType)
		if err != nil {
			return t, err
		}
		t.Mode = trigger.ParallelMode(click)
	default:
		return t, fmt.Errorf("unknown mode %q", tf.Mode)
	}

	for _, k := range tf.Keys {
		key, err := k.toKey()
		if err != nil {
			return t, err
		}
		// Parallel keys take the chord's click type unless they say otherwise.
		if t.Mode.Kind == trigger.Parallel && k.ClickType == "" {
			key.ClickType = t.Mode.ClickType
		}
		t.Keys = append(t.Keys, key)
	}

	t.LongPressDelay = millisPtr(tf.LongPressDelayMS)
	t.DoublePressDelay = millisPtr(tf.DoublePressDelayMS)
	t.SequenceTimeout = millisPtr(tf.SequenceTimeoutMS)
	return t, nil
}

func (kf KeyFile) toKey() (trigger.Key, error) {
	click, err := trigger.ParseClickType(kf.ClickType)
	if err != nil {
		return trigger.Key{}, err
	}

	var dev trigger.Device
	switch kf.Device {
	case "any", "":
		dev = trigger.AnyDevice()
	case "internal":
		dev = trigger.InternalDevice()
	case "external":
		dev = trigger.ExternalDevice(nfc(kf.Descriptor))
	default:
		return trigger.Key{}, fmt.Errorf("unknown device %q", kf.Device)
	}

	return trigger.Key{
		KeyCode:   kf.KeyCode,
		ScanCode:  kf.ScanCode,
		Device:    dev,
		ClickType: click,
		Consume:   kf.Consume,
	}, nil
}

func (af ActionFile) toAction() (action.Action, error) {
	mode, err := action.ParseRepeatMode(af.RepeatMode)
	if err != nil {
		return action.Action{}, err
	}

	var extras map[string]string
	if len(af.Extras) > 0 {
		extras = make(map[string]string, len(af.Extras))
		for k, v := range af.Extras {
			extras[nfc(k)] = nfc(v)
		}
	}

	return action.Action{
		Data: action.Data{
			Kind:      action.Kind(af.Kind),
			KeyCode:   af.KeyCode,
			MetaState: af.MetaState,
			Package:   nfc(af.Package),
			Text:      nfc(af.Text),
			Extras:    extras,
		},
		HoldDown:                            af.HoldDown,
		Repeat:                              af.Repeat,
		RepeatMode:                          mode,
		RepeatLimit:                         af.RepeatLimit,
		RepeatRate:                          millisPtr(af.RepeatRateMS),
		RepeatDelay:                         millisPtr(af.RepeatDelayMS),
		HoldDownDuration:                    millisPtr(af.HoldDownDurationMS),
		DelayBeforeNextAction:               millisPtr(af.DelayBeforeNextActionMS),
		Multiplier:                          af.Multiplier,
		StopHoldDownWhenTriggerPressedAgain: af.StopHoldDownWhenPressedAgain,
	}, nil
}

func (cf *ConstraintsFile) toState() (constraint.State, error) {
	if cf == nil {
		return constraint.State{}, nil
	}
	mode, err := constraint.ParseMode(cf.Mode)
	if err != nil {
		return constraint.State{}, err
	}
	state := constraint.State{Mode: mode}
	for i, c := range cf.List {
		data, err := c.toData()
		if err != nil {
			return constraint.State{}, fmt.Errorf("list[%d]: %w", i, err)
		}
		state.Constraints = append(state.Constraints, constraint.Constraint{UID: nfc(c.UID), Data: data})
	}
	return state, nil
}

func (c ConstraintFile) toData() (constraint.Data, error) {
	pkg := nfc(c.Package)
	switch c.Kind {
	case "app_in_foreground":
		return constraint.AppInForeground{Package: pkg}, nil
	case "app_not_in_foreground":
		return constraint.AppNotInForeground{Package: pkg}, nil
	case "app_playing_media":
		return constraint.AppPlayingMedia{Package: pkg}, nil
	case "app_not_playing_media":
		return constraint.AppNotPlayingMedia{Package: pkg}, nil
	case "media_playing":
		return constraint.MediaPlaying{}, nil
	case "no_media_playing":
		return constraint.NoMediaPlaying{}, nil
	case "bt_device_connected":
		return constraint.BtDeviceConnected{Address: nfc(c.Address), Name: nfc(c.Name)}, nil
	case "bt_device_disconnected":
		return constraint.BtDeviceDisconnected{Address: nfc(c.Address), Name: nfc(c.Name)}, nil
	case "screen_on":
		return constraint.ScreenOn{}, nil
	case "screen_off":
		return constraint.ScreenOff{}, nil
	case "orientation_portrait":
		return constraint.OrientationPortrait{}, nil
	case "orientation_landscape":
		return constraint.OrientationLandscape{}, nil
	case "orientation_custom":
		if c.Orientation == nil {
			return nil, fmt.Errorf("orientation_custom needs an orientation")
		}
		o, err := constraint.ParseOrientation(strconv.Itoa(*c.Orientation))
		if err != nil {
			return nil, err
		}
		return constraint.OrientationCustom{Orientation: o}, nil
	case "flashlight_on", "flashlight_off":
		lens, err := constraint.ParseLens(c.Lens)
		if err != nil {
			return nil, err
		}
		if c.Kind == "flashlight_on" {
			return constraint.FlashlightOn{Lens: lens}, nil
		}
		return constraint.FlashlightOff{Lens: lens}, nil
	case "wifi_on":
		return constraint.WifiOn{}, nil
	case "wifi_off":
		return constraint.WifiOff{}, nil
	case "wifi_connected":
		return constraint.WifiConnected{SSID: nfcPtr(c.SSID)}, nil
	case "wifi_disconnected":
		return constraint.WifiDisconnected{SSID: nfcPtr(c.SSID)}, nil
	case "ime_chosen":
		return constraint.ImeChosen{ImeID: nfc(c.ImeID), Label: nfc(c.Label)}, nil
	case "ime_not_chosen":
		return constraint.ImeNotChosen{ImeID: nfc(c.ImeID), Label: nfc(c.Label)}, nil
	case "device_locked":
		return constraint.DeviceLocked{}, nil
	case "device_unlocked":
		return constraint.DeviceUnlocked{}, nil
	case "lock_screen_showing":
		return constraint.LockScreenShowing{}, nil
	case "lock_screen_not_showing":
		return constraint.LockScreenNotShowing{}, nil
	case "in_phone_call":
		return constraint.InPhoneCall{}, nil
	case "not_in_phone_call":
		return constraint.NotInPhoneCall{}, nil
	case "phone_ringing":
		return constraint.PhoneRinging{}, nil
	case "charging":
		return constraint.Charging{}, nil
	case "discharging":
		return constraint.Discharging{}, nil
	case "hinge_closed":
		return constraint.HingeClosed{}, nil
	case "hinge_open":
		return constraint.HingeOpen{}, nil
	case "time":
		start, err := constraint.ParseTimeOfDay(c.Start)
		if err != nil {
			return nil, err
		}
		end, err := constraint.ParseTimeOfDay(c.End)
		if err != nil {
			return nil, err
		}
		return constraint.Time{Start: start, End: end}, nil
	}
	return nil, fmt.Errorf("unknown constraint kind %q", c.Kind)
}

func nfc(s string) string {
	return norm.NFC.String(s)
}

func nfcPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := nfc(*s)
	return &v
}

func millisPtr(ms *int) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}

func setMillis(dst *time.Duration, ms *int) {
	if ms != nil {
		*dst = time.Duration(*ms) * time.Millisecond
	}
}
