package gateway

import "errors"

// ErrUnknownIdentity indicates a device name outside the closed set.
var ErrUnknownIdentity = errors.New("unknown device identity")
