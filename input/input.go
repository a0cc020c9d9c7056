// Package input defines the key identifiers and the hook contract used to observe raw keyboard and
// mouse events
package input

// Key identifies a physical key independent of platform. The plain modifier names are the left-hand
// keys; the right-hand keys carry their own identifier so holding both sides is tracked correctly.
type Key string

const (
	KeyUnknown Key = ""
	KeyCtrl    Key = "ctrl"
	KeyAlt     Key = "alt"
	KeyShift   Key = "shift"
	KeyEsc     Key = "esc"
	KeyMeta    Key = "meta"
	KeyTab     Key = "tab"
	KeyEnter   Key = "enter"
	KeySpace   Key = "space"
	KeyF4      Key = "f4"

	KeyCtrlRight  Key = "ctrl_r"
	KeyAltRight   Key = "alt_r"
	KeyShiftRight Key = "shift_r"
	KeyMetaRight  Key = "meta_r"
)

// Base returns the side-independent key, so KeyCtrlRight maps to KeyCtrl.
func (k Key) Base() Key {
	switch k {
	case KeyCtrlRight:
		return KeyCtrl
	case KeyAltRight:
		return KeyAlt
	case KeyShiftRight:
		return KeyShift
	case KeyMetaRight:
		return KeyMeta
	default:
		return k
	}
}

// EscapeCombination is the set of keys that must be held together to request an exit. Either side
// of a modifier satisfies it.
var EscapeCombination = []Key{KeyCtrl, KeyAlt, KeyShift, KeyEsc}

// Handler receives events from a Driver. Each method reports whether the event was consumed and
// should not reach other applications.
type Handler interface {
	OnKeyDown(k Key) bool
	OnKeyUp(k Key) bool
	OnMouseActivity() bool
}

// Driver delivers raw input events to a Handler from its own goroutines.
type Driver interface {
	Start(h Handler) error
	Stop() error
}

// Grabber is implemented by drivers that can take exclusive ownership of a device, keeping its
// events away from every other reader while grabbed.
type Grabber interface {
	GrabKeyboard(on bool) error
	GrabMouse(on bool) error
}
