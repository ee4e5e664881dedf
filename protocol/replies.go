package protocol

import (
	"encoding/binary"
	"fmt"
)

// Reply is a parsed service-reply frame.
type Reply struct {
	// Status is the device-side processing status
	Status Status

	// ID is the protocol slot handle assigned at INIT
	ID uint16

	// Size is the reply payload length announced by a terminal CHECK
	Size uint32

	// Result is the caller-visible result code
	Result Result
}

// ParseReply parses a service-reply frame. Frames shorter than
// MinReplyFrameSize are rejected; trailing bytes are ignored.
func ParseReply(frame []byte) (*Reply, error) {
	if len(frame) < MinReplyFrameSize {
		return nil, &Error{
			Op:      "parse reply",
			Message: fmt.Sprintf("frame too short: got %d bytes, minimum is %d", len(frame), MinReplyFrameSize),
		}
	}
	return &Reply{
		Status: Status(binary.LittleEndian.Uint16(frame[0:2])),
		ID:     binary.LittleEndian.Uint16(frame[2:4]),
		Size:   binary.LittleEndian.Uint32(frame[4:8]),
		Result: Result(int32(binary.LittleEndian.Uint32(frame[8:12]))),
	}, nil
}

// MarshalReply encodes a reply as a full ReplyFrameSize frame. The inverse of
// ParseReply; used by tests and device simulators.
func MarshalReply(r *Reply) []byte {
	frame := make([]byte, ReplyFrameSize)
	binary.LittleEndian.PutUint16(frame[0:2], uint16(r.Status))
	binary.LittleEndian.PutUint16(frame[2:4], r.ID)
	binary.LittleEndian.PutUint32(frame[4:8], r.Size)
	binary.LittleEndian.PutUint32(frame[8:12], uint32(int32(r.Result)))
	return frame
}
