package event

import "errors"

// ErrBusClosed indicates the bus has been closed.
var ErrBusClosed = errors.New("event: bus closed")
