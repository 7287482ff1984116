package constraint

import (
	"fmt"
	"slices"
)

// IsSatisfied reports whether every state is satisfied by the snapshot.
// States are combined with AND; an empty state is always satisfied.
func IsSatisfied(snap Snapshot, states ...State) bool {
	for _, state := range states {
		if !stateSatisfied(snap, state) {
			return false
		}
	}
	return true
}

func stateSatisfied(snap Snapshot, state State) bool {
	if len(state.Constraints) == 0 {
		return true
	}

	switch state.Mode {
	case Or:
		for _, c := range state.Constraints {
			if Evaluate(snap, c) {
				return true
			}
		}
		return false
	default:
		for _, c := range state.Constraints {
			if !Evaluate(snap, c) {
				return false
			}
		}
		return true
	}
}

// Evaluate reports whether a single constraint holds for the snapshot.
func Evaluate(snap Snapshot, c Constraint) bool {
	switch d := c.Data.(type) {
	case AppInForeground:
		return snap.ForegroundApp() == d.Package
	case AppNotInForeground:
		return snap.ForegroundApp() != d.Package
	case AppPlayingMedia:
		return appPlayingMedia(snap, d.Package)
	case AppNotPlayingMedia:
		return !appPlayingMedia(snap, d.Package)
	case MediaPlaying:
		return mediaPlaying(snap)
	case NoMediaPlaying:
		return !mediaPlaying(snap)
	case BtDeviceConnected:
		return slices.Contains(snap.ConnectedBluetoothDevices(), d.Address)
	case BtDeviceDisconnected:
		return !slices.Contains(snap.ConnectedBluetoothDevices(), d.Address)
	case ScreenOn:
		return snap.ScreenOn()
	case ScreenOff:
		return !snap.ScreenOn()
	case OrientationPortrait:
		o := snap.Orientation()
		return o == Orientation0 || o == Orientation180
	case OrientationLandscape:
		o := snap.Orientation()
		return o == Orientation90 || o == Orientation270
	case OrientationCustom:
		return snap.Orientation() == d.Orientation
	case FlashlightOn:
		return snap.FlashlightOn(d.Lens)
	case FlashlightOff:
		return !snap.FlashlightOn(d.Lens)
	case WifiOn:
		return snap.WifiEnabled()
	case WifiOff:
		return !snap.WifiEnabled()
	case WifiConnected:
		ssid, connected := snap.ConnectedSSID()
		if d.SSID == nil {
			return connected
		}
		return connected && ssid == *d.SSID
	case WifiDisconnected:
		ssid, connected := snap.ConnectedSSID()
		if d.SSID == nil {
			return !connected
		}
		return !connected || ssid != *d.SSID
	case ImeChosen:
		return snap.ChosenIME() == d.ImeID
	case ImeNotChosen:
		return snap.ChosenIME() != d.ImeID
	case DeviceLocked:
		return snap.Locked()
	case DeviceUnlocked:
		return !snap.Locked()
	case LockScreenShowing:
		return lockScreenShowing(snap)
	case LockScreenNotShowing:
		return !lockScreenShowing(snap)
	case InPhoneCall:
		return snap.CallState() == CallInCall || streamActive(snap, StreamVoiceCall)
	case NotInPhoneCall:
		return snap.CallState() == CallIdle && !streamActive(snap, StreamVoiceCall)
	case PhoneRinging:
		return snap.CallState() == CallRinging || streamActive(snap, StreamRing)
	case Charging:
		return snap.Charging()
	case Discharging:
		return !snap.Charging()
	case HingeClosed:
		return snap.Hinge() == HingeStateClosed
	case HingeOpen:
		return snap.Hinge() == HingeStateOpen
	case Time:
		return d.Contains(snap.LocalTime())
	case nil:
		return false
	default:
		panic(fmt.Sprintf("constraint: unhandled predicate %T", d))
	}
}

// Contains reports whether t lies strictly inside the window.
func (w Time) Contains(t TimeOfDay) bool {
	if w.Start > w.End {
		return t > w.Start || t < w.End
	}
	return t > w.Start && t < w.End
}

func mediaPlaying(snap Snapshot) bool {
	return streamActive(snap, StreamMusic) || len(snap.AppsPlayingMedia()) > 0
}

func appPlayingMedia(snap Snapshot, pkg string) bool {
	if slices.Contains(snap.AppsPlayingMedia(), pkg) {
		return true
	}
	return snap.ForegroundApp() == pkg && mediaPlaying(snap)
}

// The keyguard still reports the lock screen as showing while another
// activity such as the camera is on top of it.
func lockScreenShowing(snap Snapshot) bool {
	return snap.LockScreenShowing() && snap.ForegroundApp() == SystemUIPackage
}

func streamActive(snap Snapshot, s AudioStream) bool {
	return slices.Contains(snap.ActiveAudioStreams(), s)
}
