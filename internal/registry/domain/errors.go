package registry

import "errors"

// ErrNotFound indicates the device reference resolved to no active device.
var ErrNotFound = errors.New("device not found")

// ErrAddressTaken indicates the address is already registered for an active device.
var ErrAddressTaken = errors.New("device address already registered")

// ErrInvalid marks device field validation failures.
var ErrInvalid = errors.New("invalid device")
