package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceLost reports that the compute device or its context went
	// away. The backend must be closed and recreated.
	ErrDeviceLost = errors.New("device lost")
	// ErrOutOfMemory reports that a device allocation failed.
	ErrOutOfMemory = errors.New("device out of memory")
	// ErrNotUploaded is returned by Run before a model was uploaded.
	ErrNotUploaded = errors.New("no model uploaded")
)

// DeviceError wraps a failure of the compute device during Op.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Recoverable reports whether err leaves the caller able to continue by
// recreating the backend and uploading the model again.
func Recoverable(err error) bool {
	var de *DeviceError
	if !errors.As(err, &de) {
		return false
	}
	return errors.Is(de.Err, ErrDeviceLost) || errors.Is(de.Err, ErrOutOfMemory)
}
