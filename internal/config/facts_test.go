package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyflow/internal/constraint"
)

func TestParseFacts(t *testing.T) {
	src := `
foreground: com.music
playing_media: [com.music]
audio_streams: [music, ring]
bluetooth: ["AA:BB"]
orientation: 270
screen_on: true
flashlights: [front]
wifi: true
ssid: home
call: ringing
hinge: closed
time: "22:15"
`
	f, err := ParseFacts([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, "com.music", f.Foreground)
	assert.Equal(t, []constraint.AudioStream{constraint.StreamMusic, constraint.StreamRing}, f.AudioStreams)
	assert.Equal(t, constraint.Orientation270, f.Rotation)
	assert.True(t, f.ScreenOn())
	assert.True(t, f.FlashlightOn(constraint.LensFront))
	assert.False(t, f.FlashlightOn(constraint.LensBack))

	ssid, connected := f.ConnectedSSID()
	assert.True(t, connected)
	assert.Equal(t, "home", ssid)

	assert.Equal(t, constraint.CallRinging, f.Call)
	assert.Equal(t, constraint.HingeStateClosed, f.HingeState)
	assert.Equal(t, constraint.NewTimeOfDay(22, 15, 0), f.Time)
}

func TestParseFacts_EmptyIsZero(t *testing.T) {
	f, err := ParseFacts(nil)
	require.NoError(t, err)

	_, connected := f.ConnectedSSID()
	assert.False(t, connected)
	assert.False(t, f.ScreenOn())
	assert.Equal(t, constraint.HingeUnavailable, f.HingeState)
}

func TestParseFacts_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown field":  "raining: true",
		"orientation":    "orientation: 45",
		"lens":           "flashlights: [side]",
		"call state":     "call: busy",
		"hinge":          "hinge: ajar",
		"audio stream":   "audio_streams: [alarm]",
		"time of day":    "time: noon",
		"malformed yaml": "screen_on: [",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFacts([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadFacts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("screen_on: true\n"), 0o644))

	f, err := LoadFacts(path)
	require.NoError(t, err)
	assert.True(t, f.Screen)

	_, err = LoadFacts(filepath.Join(dir, "missing.yaml"))
	requireLoadError(t, err, ErrCodeRead)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("hinge: ajar\n"), 0o644))
	_, err = LoadFacts(bad)
	requireLoadError(t, err, ErrCodeInvalid)
}
