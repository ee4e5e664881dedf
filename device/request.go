package device

import (
	"time"

	"github.com/mcudev/go-ionctl/protocol"
)

// Reply is the completed result of a logical request.
type Reply struct {
	// Result is the caller-visible result code reported by the firmware
	Result protocol.Result

	// Data is the reply payload, if any
	Data []byte

	// IsText reports whether the request was submitted as text; the payload
	// is then text of the same encoding
	IsText bool
}

// Text returns the reply payload as a string.
func (r *Reply) Text() string {
	return string(r.Data)
}

// outcome is the terminal value delivered to the submitting caller.
type outcome struct {
	reply *Reply
	err   error
}

// request is one logical request owned jointly by the submitting caller
// (awaiting ch) and the device handle (driving it through the queues).
// All mutable fields are guarded by the device mutex.
type request struct {
	// id is the handle-local submission identifier
	id uint32

	// reqType is the logical request type code
	reqType uint16

	// data is the request payload
	data []byte

	// isText records that the caller submitted text, so the reply payload is
	// returned as text
	isText bool

	// rawResult suppresses the non-OK result check
	rawResult bool

	// policy decides CHECK delays
	policy PollingPolicy

	// protoID is the slot handle assigned by the device at INIT; zero until
	// then
	protoID uint16

	// dataSent records that the payload has been uploaded (or that there was
	// none to upload)
	dataSent bool

	// checkCount is the number of CHECK transfers issued so far; it restarts
	// at zero once a deferred payload has been sent
	checkCount uint32

	// deadline is the absolute time at which the request fails
	deadline time.Time

	// done marks the request terminal. A done request may still sit in a
	// queue; the pump skips it at dequeue time.
	done bool

	deadlineTimer *time.Timer
	pollTimer     *time.Timer

	// ch delivers the single terminal outcome to the caller
	ch chan outcome
}

// stopTimers clears the request's timers. Safe to call repeatedly.
func (r *request) stopTimers() {
	if r.deadlineTimer != nil {
		r.deadlineTimer.Stop()
		r.deadlineTimer = nil
	}
	if r.pollTimer != nil {
		r.pollTimer.Stop()
		r.pollTimer = nil
	}
}
