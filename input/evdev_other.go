//go:build !linux

package input

import "errors"

var errUnsupported = errors.New("evdev input is only available on linux")

type EvdevDriver struct{}

func NewEvdevDriver(keyboardPath, mousePath string) *EvdevDriver {
	return &EvdevDriver{}
}

func (d *EvdevDriver) Start(h Handler) error { return errUnsupported }

func (d *EvdevDriver) Stop() error { return nil }

func (d *EvdevDriver) GrabKeyboard(on bool) error { return errUnsupported }

func (d *EvdevDriver) GrabMouse(on bool) error { return errUnsupported }
