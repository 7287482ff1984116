package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/keyflow/internal/constraint"
)

// FactsFile is the YAML shape of a device fact snapshot, used by scenarios
// and by `keyflow run --facts`. Omitted facts take their zero value.
type FactsFile struct {
	Foreground   string   `yaml:"foreground,omitempty"`
	PlayingMedia []string `yaml:"playing_media,omitempty"`
	AudioStreams []string `yaml:"audio_streams,omitempty"`
	Bluetooth    []string `yaml:"bluetooth,omitempty"`
	Orientation  int      `yaml:"orientation,omitempty"`
	ScreenOn     bool     `yaml:"screen_on,omitempty"`
	Flashlights  []string `yaml:"flashlights,omitempty"`
	Wifi         bool     `yaml:"wifi,omitempty"`

	// SSID, when set, means connected to that network.
	SSID       string `yaml:"ssid,omitempty"`
	IME        string `yaml:"ime,omitempty"`
	Locked     bool   `yaml:"locked,omitempty"`
	LockScreen bool   `yaml:"lock_screen,omitempty"`
	Call       string `yaml:"call,omitempty"`
	Charging   bool   `yaml:"charging,omitempty"`
	Hinge      string `yaml:"hinge,omitempty"`
	Time       string `yaml:"time,omitempty"`
}

// LoadFacts reads a facts file.
func LoadFacts(path string) (constraint.Facts, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return constraint.Facts{}, &LoadError{Code: ErrCodeRead, Message: err.Error(), Path: path}
	}
	facts, err := ParseFacts(src)
	if err != nil {
		return constraint.Facts{}, &LoadError{Code: ErrCodeInvalid, Message: err.Error(), Path: path}
	}
	return facts, nil
}

// ParseFacts decodes a YAML facts document. Unknown fields are rejected.
func ParseFacts(src []byte) (constraint.Facts, error) {
	var ff FactsFile
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil && !errors.Is(err, io.EOF) {
		return constraint.Facts{}, fmt.Errorf("parse facts: %w", err)
	}
	return ff.ToFacts()
}

// ToFacts converts the file form, normalizing strings to NFC.
func (ff FactsFile) ToFacts() (constraint.Facts, error) {
	f := constraint.Facts{
		Foreground:    nfc(ff.Foreground),
		Screen:        ff.ScreenOn,
		Wifi:          ff.Wifi,
		IME:           nfc(ff.IME),
		DeviceLocked:  ff.Locked,
		LockScreen:    ff.LockScreen,
		PowerCharging: ff.Charging,
	}
	for _, pkg := range ff.PlayingMedia {
		f.PlayingMedia = append(f.PlayingMedia, nfc(pkg))
	}
	for _, dev := range ff.Bluetooth {
		f.BluetoothDevices = append(f.BluetoothDevices, nfc(dev))
	}
	if ff.SSID != "" {
		f.SSID = nfc(ff.SSID)
		f.WifiConnected = true
	}

	rotation, err := constraint.ParseOrientation(fmt.Sprint(ff.Orientation))
	if err != nil {
		return constraint.Facts{}, err
	}
	f.Rotation = rotation

	for _, s := range ff.AudioStreams {
		stream, err := parseAudioStream(s)
		if err != nil {
			return constraint.Facts{}, err
		}
		f.AudioStreams = append(f.AudioStreams, stream)
	}
	for _, s := range ff.Flashlights {
		lens, err := constraint.ParseLens(s)
		if err != nil {
			return constraint.Facts{}, err
		}
		f.Flashlights = append(f.Flashlights, lens)
	}

	switch ff.Call {
	case "", "idle":
		f.Call = constraint.CallIdle
	case "ringing":
		f.Call = constraint.CallRinging
	case "in_call":
		f.Call = constraint.CallInCall
	default:
		return constraint.Facts{}, fmt.Errorf("unknown call state %q", ff.Call)
	}

	switch ff.Hinge {
	case "":
		f.HingeState = constraint.HingeUnavailable
	case "open":
		f.HingeState = constraint.HingeStateOpen
	case "closed":
		f.HingeState = constraint.HingeStateClosed
	default:
		return constraint.Facts{}, fmt.Errorf("unknown hinge state %q", ff.Hinge)
	}

	if ff.Time != "" {
		tod, err := constraint.ParseTimeOfDay(ff.Time)
		if err != nil {
			return constraint.Facts{}, err
		}
		f.Time = tod
	}
	return f, nil
}

func parseAudioStream(s string) (constraint.AudioStream, error) {
	switch s {
	case "music":
		return constraint.StreamMusic, nil
	case "voice_call":
		return constraint.StreamVoiceCall, nil
	case "ring":
		return constraint.StreamRing, nil
	}
	return 0, fmt.Errorf("unknown audio stream %q", s)
}
