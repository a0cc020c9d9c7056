package input

import (
	"encoding/binary"
	"fmt"
)

// Linux evdev key codes
const (
	evKeyEsc       = 1
	evKeyTab       = 15
	evKeyEnter     = 28
	evKeyLeftCtrl  = 29
	evKeyLeftShift = 42
	evKeyRightShft = 54
	evKeyLeftAlt   = 56
	evKeySpace     = 57
	evKeyF4        = 62
	evKeyRightCtrl = 97
	evKeyRightAlt  = 100
	evKeyLeftMeta  = 125
	evKeyRightMeta = 126

	// mouse buttons start at BTN_MOUSE
	evBtnMouse = 0x110
	evBtnTask  = 0x117
)

// evdev event types
const (
	evTypeKey = 0x01
	evTypeRel = 0x02
	evTypeAbs = 0x03
)

// evdev key states
const (
	keyReleased = 0
	keyPressed  = 1
	keyRepeat   = 2
)

// sizeof(struct input_event) on 64-bit
const eventSize = 24

type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

func decodeEvent(buf []byte) (inputEvent, error) {
	if len(buf) != eventSize {
		return inputEvent{}, fmt.Errorf("short input event: %d bytes", len(buf))
	}
	return inputEvent{
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}

// translateKeycode converts an evdev key code to a Key. Keys without a name get a code-based
// identifier so they still take part in pressed-key tracking.
func translateKeycode(code uint16) Key {
	switch code {
	case evKeyLeftCtrl:
		return KeyCtrl
	case evKeyRightCtrl:
		return KeyCtrlRight
	case evKeyLeftAlt:
		return KeyAlt
	case evKeyRightAlt:
		return KeyAltRight
	case evKeyLeftShift:
		return KeyShift
	case evKeyRightShft:
		return KeyShiftRight
	case evKeyEsc:
		return KeyEsc
	case evKeyLeftMeta:
		return KeyMeta
	case evKeyRightMeta:
		return KeyMetaRight
	case evKeyTab:
		return KeyTab
	case evKeyEnter:
		return KeyEnter
	case evKeySpace:
		return KeySpace
	case evKeyF4:
		return KeyF4
	default:
		return Key(fmt.Sprintf("key%d", code))
	}
}

func isMouseButton(code uint16) bool {
	return code >= evBtnMouse && code <= evBtnTask
}

// dispatchKeyboard forwards one keyboard device event to h.
func dispatchKeyboard(h Handler, ev inputEvent) {
	if ev.Type != evTypeKey || isMouseButton(ev.Code) {
		return
	}
	key := translateKeycode(ev.Code)
	switch ev.Value {
	case keyPressed, keyRepeat:
		h.OnKeyDown(key)
	case keyReleased:
		h.OnKeyUp(key)
	}
}

// dispatchMouse forwards one mouse device event to h. Only motion and button presses count.
func dispatchMouse(h Handler, ev inputEvent) {
	switch ev.Type {
	case evTypeRel, evTypeAbs:
		h.OnMouseActivity()
	case evTypeKey:
		if isMouseButton(ev.Code) && ev.Value == keyPressed {
			h.OnMouseActivity()
		}
	}
}
