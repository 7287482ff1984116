package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDefaults(t *testing.T) {
	d := DefaultDefaults()
	assert.Equal(t, 500*time.Millisecond, d.LongPressDelay)
	assert.Equal(t, 300*time.Millisecond, d.DoublePressDelay)
	assert.Equal(t, 400*time.Millisecond, d.RepeatDelay)
	assert.Equal(t, 50*time.Millisecond, d.RepeatRate)
	assert.Equal(t, 1000*time.Millisecond, d.SequenceTriggerTimeout)
	assert.Equal(t, 1000*time.Millisecond, d.HoldDownDuration)
	assert.NoError(t, d.Validate())

	assert.Equal(t, d.SequenceTriggerTimeout, d.MatcherTiming().SequenceTimeout)
	assert.Equal(t, d.RepeatRate, d.DispatchTiming().RepeatRate)
}

func TestDefaults_Validate(t *testing.T) {
	d := DefaultDefaults()
	d.RepeatRate = 0
	assert.ErrorContains(t, d.Validate(), "repeat_rate")

	d = DefaultDefaults()
	d.HoldDownDuration = -time.Second
	assert.ErrorContains(t, d.Validate(), "hold_down_duration")
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvLongPressDelay, "650")
	t.Setenv(EnvHoldDownDuration, "0")

	d, err := FromEnv("")
	require.NoError(t, err)
	assert.Equal(t, 650*time.Millisecond, d.LongPressDelay)
	assert.Equal(t, time.Duration(0), d.HoldDownDuration)
	assert.Equal(t, 50*time.Millisecond, d.RepeatRate)
}

func TestFromEnv_InvalidValueIgnored(t *testing.T) {
	t.Setenv(EnvDoublePressDelay, "fast")

	d, err := FromEnv("")
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, d.DoublePressDelay)
}

func TestFromEnv_RejectsUnusableValue(t *testing.T) {
	t.Setenv(EnvRepeatRate, "0")

	_, err := FromEnv("")
	assert.ErrorContains(t, err, "repeat_rate")
}

func TestFromEnv_EnvFile(t *testing.T) {
	_, set := os.LookupEnv(EnvRepeatDelay)
	require.False(t, set, "test needs %s unset", EnvRepeatDelay)
	t.Cleanup(func() { os.Unsetenv(EnvRepeatDelay) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvRepeatDelay+"=250\n"), 0o644))

	d, err := FromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d.RepeatDelay)
}

func TestFromEnv_ProcessEnvWinsOverFile(t *testing.T) {
	t.Setenv(EnvRepeatDelay, "100")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvRepeatDelay+"=250\n"), 0o644))

	d, err := FromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, d.RepeatDelay)
}

func TestFromEnv_MissingFileIsFine(t *testing.T) {
	_, err := FromEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
