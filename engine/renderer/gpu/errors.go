package gpu

import "errors"

var (
	ErrAllocatorInFlight = errors.New("command allocator reset while its commands may still execute")
	ErrListClosed        = errors.New("command list is closed")
	ErrListOpen          = errors.New("command list was not closed before execution")
	ErrDeviceLost        = errors.New("device lost")
	ErrOutOfRange        = errors.New("descriptor slot out of range")
)
