package trigger

import "fmt"

// ClickType classifies a key press by duration and repetition.
type ClickType int

const (
	ShortPress ClickType = iota
	LongPress
	DoublePress
)

// String returns the config spelling of the click type.
func (c ClickType) String() string {
	switch c {
	case ShortPress:
		return "short"
	case LongPress:
		return "long"
	case DoublePress:
		return "double"
	default:
		return fmt.Sprintf("ClickType(%d)", int(c))
	}
}

// ParseClickType parses "short", "long" or "double".
func ParseClickType(s string) (ClickType, error) {
	switch s {
	case "short", "":
		return ShortPress, nil
	case "long":
		return LongPress, nil
	case "double":
		return DoublePress, nil
	}
	return ShortPress, fmt.Errorf("unknown click type %q", s)
}

// DeviceKind selects which input devices a key listens to.
type DeviceKind int

const (
	DeviceAny DeviceKind = iota
	DeviceInternal
	DeviceExternal
)

// Device binds a trigger key to an input device.
// Descriptor is only meaningful for DeviceExternal.
type Device struct {
	Kind       DeviceKind
	Descriptor string
}

// AnyDevice matches events from every device.
func AnyDevice() Device { return Device{Kind: DeviceAny} }

// InternalDevice matches events from built-in devices only.
func InternalDevice() Device { return Device{Kind: DeviceInternal} }

// ExternalDevice matches events from the external device with the given descriptor.
func ExternalDevice(descriptor string) Device {
	return Device{Kind: DeviceExternal, Descriptor: descriptor}
}

func (d Device) String() string {
	switch d.Kind {
	case DeviceInternal:
		return "internal"
	case DeviceExternal:
		return "external:" + d.Descriptor
	default:
		return "any"
	}
}

// Matches reports whether an event from the given source is accepted.
func (d Device) Matches(external bool, descriptor string) bool {
	switch d.Kind {
	case DeviceInternal:
		return !external
	case DeviceExternal:
		return external && descriptor == d.Descriptor
	default:
		return true
	}
}

// Key is one key of a trigger.
type Key struct {
	KeyCode   int
	ScanCode  int
	Device    Device
	ClickType ClickType

	// Consume withholds the physical event from downstream consumers.
	Consume bool
}

// MatchesCode reports whether the key code and device of an event match
// this key, ignoring click type.
func (k Key) MatchesCode(keyCode int, external bool, descriptor string) bool {
	return k.KeyCode == keyCode && k.Device.Matches(external, descriptor)
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.KeyCode, k.ClickType, k.Device)
}
