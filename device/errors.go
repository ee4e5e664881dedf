package device

import (
	"fmt"

	"github.com/mcudev/go-ionctl/protocol"
)

// DeviceError is the generic error category for device operations.
type DeviceError struct {
	// Message describes the failure
	Message string

	// Cause is the underlying error, if any
	Cause error
}

func (e *DeviceError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("device: %s", e.Message)
	}
	return fmt.Sprintf("device: %s: %v", e.Message, e.Cause)
}

func (e *DeviceError) Unwrap() error {
	return e.Cause
}

// StateError indicates that the handle is not open, or is being closed.
// The caller must reopen the device.
type StateError struct {
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("device: %s", e.Message)
}

// TimeoutError indicates that a request's deadline elapsed before the device
// finished processing it. Any protocol slot held by the request is reclaimed
// automatically; the caller may retry.
type TimeoutError struct{}

func (e *TimeoutError) Error() string {
	return "device: request timed out"
}

// MemoryError indicates that the device reported NO_MEMORY. The caller may
// retry later or reduce concurrency.
type MemoryError struct{}

func (e *MemoryError) Error() string {
	return "device: device ran out of memory"
}

// RequestError indicates that the device processed the request but returned
// a non-OK result code.
type RequestError struct {
	// Result is the result code reported by the firmware
	Result protocol.Result

	// Message is the human-readable description of the result code
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("device: request failed: %s (%d)", e.Message, int32(e.Result))
}

// newRequestError builds a RequestError from a result code using the
// protocol message table.
func newRequestError(r protocol.Result) *RequestError {
	return &RequestError{Result: r, Message: r.Message()}
}

// InternalError indicates a violated engine invariant. A bug; abort the
// operation.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("device: internal error: %s", e.Message)
}
