package constraint

import "sync"

// LazySnapshot reads each fact from its source the first time it is asked
// for and answers from memory afterwards, so a fact cannot change between
// two constraints that read it. Create a new LazySnapshot for every
// evaluation.
type LazySnapshot struct {
	src Snapshot

	foreground  func() string
	media       func() []string
	streams     func() []AudioStream
	bluetooth   func() []string
	orientation func() Orientation
	screen      func() bool
	wifi        func() bool
	ssid        func() ssidFact
	ime         func() string
	locked      func() bool
	lockScreen  func() bool
	call        func() CallState
	charging    func() bool
	hinge       func() HingeState
	localTime   TimeOfDay

	mu          sync.Mutex
	flashlights map[Lens]bool
}

type ssidFact struct {
	ssid      string
	connected bool
}

var _ Snapshot = (*LazySnapshot)(nil)

// NewLazySnapshot wraps a fact source. The local time is read immediately
// so that time constraints see the moment the evaluation started.
func NewLazySnapshot(src Snapshot) *LazySnapshot {
	return &LazySnapshot{
		src:         src,
		foreground:  sync.OnceValue(src.ForegroundApp),
		media:       sync.OnceValue(src.AppsPlayingMedia),
		streams:     sync.OnceValue(src.ActiveAudioStreams),
		bluetooth:   sync.OnceValue(src.ConnectedBluetoothDevices),
		orientation: sync.OnceValue(src.Orientation),
		screen:      sync.OnceValue(src.ScreenOn),
		wifi:        sync.OnceValue(src.WifiEnabled),
		ssid: sync.OnceValue(func() ssidFact {
			s, ok := src.ConnectedSSID()
			return ssidFact{ssid: s, connected: ok}
		}),
		ime:         sync.OnceValue(src.ChosenIME),
		locked:      sync.OnceValue(src.Locked),
		lockScreen:  sync.OnceValue(src.LockScreenShowing),
		call:        sync.OnceValue(src.CallState),
		charging:    sync.OnceValue(src.Charging),
		hinge:       sync.OnceValue(src.Hinge),
		localTime:   src.LocalTime(),
		flashlights: make(map[Lens]bool),
	}
}

func (l *LazySnapshot) ForegroundApp() string               { return l.foreground() }
func (l *LazySnapshot) AppsPlayingMedia() []string          { return l.media() }
func (l *LazySnapshot) ActiveAudioStreams() []AudioStream   { return l.streams() }
func (l *LazySnapshot) ConnectedBluetoothDevices() []string { return l.bluetooth() }
func (l *LazySnapshot) Orientation() Orientation            { return l.orientation() }
func (l *LazySnapshot) ScreenOn() bool                      { return l.screen() }
func (l *LazySnapshot) WifiEnabled() bool                   { return l.wifi() }
func (l *LazySnapshot) ChosenIME() string                   { return l.ime() }
func (l *LazySnapshot) Locked() bool                        { return l.locked() }
func (l *LazySnapshot) LockScreenShowing() bool             { return l.lockScreen() }
func (l *LazySnapshot) CallState() CallState                { return l.call() }
func (l *LazySnapshot) Charging() bool                      { return l.charging() }
func (l *LazySnapshot) Hinge() HingeState                   { return l.hinge() }
func (l *LazySnapshot) LocalTime() TimeOfDay                { return l.localTime }

func (l *LazySnapshot) ConnectedSSID() (string, bool) {
	f := l.ssid()
	return f.ssid, f.connected
}

func (l *LazySnapshot) FlashlightOn(lens Lens) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	on, ok := l.flashlights[lens]
	if !ok {
		on = l.src.FlashlightOn(lens)
		l.flashlights[lens] = on
	}
	return on
}

// LazyProvider wraps every snapshot of a source provider in a LazySnapshot.
type LazyProvider struct {
	Source Provider
}

// Snapshot implements Provider.
func (p LazyProvider) Snapshot() Snapshot {
	return NewLazySnapshot(p.Source.Snapshot())
}
