package content

import "errors"

var (
	ErrInvalidEntry    = errors.New("invalid content entry")
	ErrIndexOutOfRange = errors.New("content index out of range")
	ErrIO              = errors.New("content io failure")
	ErrFormat          = errors.New("content format error")
)
