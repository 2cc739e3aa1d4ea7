package tt800

import "errors"

// ErrInvalidState is returned when an encoded state cannot be decoded
var ErrInvalidState = errors.New("invalid state")

// ErrStateSize is returned when a binary state is not StateSize bytes
var ErrStateSize = errors.New("invalid state size")

// ErrCursorRange is returned when a decoded cursor is outside 0..N-1
var ErrCursorRange = errors.New("cursor out of range")
