package protocol

import "fmt"

// BRequestService is the vendor bRequest carrying all service frames.
const BRequestService = 0x50

// Size limits fixed by the firmware contract.
const (
	// MaxRequestType is the largest logical request type code
	MaxRequestType = 0xFFFF

	// MaxPayloadSize is the largest request or reply payload in bytes
	MaxPayloadSize = 0xFFFF

	// ReplyFrameSize is the size of a full service-reply frame
	ReplyFrameSize = 16

	// MinReplyFrameSize is the smallest reply frame carrying all required
	// fields (status, id, size, result)
	MinReplyFrameSize = 12
)

// Kind distinguishes the five service frames. Carried in wIndex.
type Kind uint16

// Service frame kinds.
const (
	KindInit  Kind = 1
	KindCheck Kind = 2
	KindSend  Kind = 3
	KindRecv  Kind = 4
	KindReset Kind = 5
)

// String returns the frame kind name.
func (k Kind) String() string {
	switch k {
	case KindInit:
		return "INIT"
	case KindCheck:
		return "CHECK"
	case KindSend:
		return "SEND"
	case KindRecv:
		return "RECV"
	case KindReset:
		return "RESET"
	default:
		return fmt.Sprintf("Kind(%d)", uint16(k))
	}
}

// Status is the device-side processing status in a service reply.
type Status uint16

// Service reply status codes.
const (
	// StatusOK indicates the operation completed
	StatusOK Status = 0

	// StatusError indicates the operation failed on the device
	StatusError Status = 1

	// StatusPending indicates the request is still being processed
	StatusPending Status = 2

	// StatusBusy indicates the device cannot accept more concurrent requests
	StatusBusy Status = 3

	// StatusNoMemory indicates the device could not allocate memory
	StatusNoMemory Status = 4

	// StatusNotFound indicates the protocol slot no longer exists
	StatusNotFound Status = 5
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusPending:
		return "PENDING"
	case StatusBusy:
		return "BUSY"
	case StatusNoMemory:
		return "NO_MEMORY"
	case StatusNotFound:
		return "NOT_FOUND"
	default:
		return fmt.Sprintf("Status(%d)", uint16(s))
	}
}

// Well-known logical request types handled by all Ion firmware.
const (
	// TypeSystemVersion returns the firmware version string
	TypeSystemVersion uint16 = 30

	// TypeSystemReset reboots the device
	TypeSystemReset uint16 = 40
)

// Result is the caller-visible result code of a completed request. Zero means
// success; the firmware reports failures as negative system error codes.
type Result int32

// Known result codes.
const (
	ResultOK              Result = 0
	ResultError           Result = -100
	ResultBusy            Result = -110
	ResultNotSupported    Result = -120
	ResultNotAllowed      Result = -130
	ResultCancelled       Result = -140
	ResultTimeout         Result = -160
	ResultNotFound        Result = -170
	ResultInvalidState    Result = -210
	ResultNoMemory        Result = -260
	ResultInvalidArgument Result = -270
)

// Message returns a human-readable description of the result code.
func (r Result) Message() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultError:
		return "Unknown error"
	case ResultBusy:
		return "Resource is busy"
	case ResultNotSupported:
		return "Not supported"
	case ResultNotAllowed:
		return "Not allowed"
	case ResultCancelled:
		return "Operation was cancelled"
	case ResultTimeout:
		return "Operation timed out"
	case ResultNotFound:
		return "Entity was not found"
	case ResultInvalidState:
		return "Invalid state"
	case ResultNoMemory:
		return "Out of memory"
	case ResultInvalidArgument:
		return "Invalid argument"
	default:
		return fmt.Sprintf("Unknown result code %d", int32(r))
	}
}
