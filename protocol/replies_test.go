package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestParseReply(t *testing.T) {
	frame := make([]byte, ReplyFrameSize)
	binary.LittleEndian.PutUint16(frame[0:2], uint16(StatusOK))
	binary.LittleEndian.PutUint16(frame[2:4], 7)
	binary.LittleEndian.PutUint32(frame[4:8], 4)
	resultValue := int32(-160)
	binary.LittleEndian.PutUint32(frame[8:12], uint32(resultValue))

	rep, err := ParseReply(frame)
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}

	if rep.Status != StatusOK {
		t.Errorf("status should be OK, got %s", rep.Status)
	}
	if rep.ID != 7 {
		t.Errorf("id should be 7, got %d", rep.ID)
	}
	if rep.Size != 4 {
		t.Errorf("size should be 4, got %d", rep.Size)
	}
	if rep.Result != ResultTimeout {
		t.Errorf("result should be %d, got %d", ResultTimeout, rep.Result)
	}
}

func TestParseReplyTooShort(t *testing.T) {
	for size := 0; size < MinReplyFrameSize; size++ {
		if _, err := ParseReply(make([]byte, size)); err == nil {
			t.Errorf("a %d-byte frame should be rejected", size)
		}
	}
}

func TestParseReplyMinimumSize(t *testing.T) {
	frame := make([]byte, MinReplyFrameSize)
	binary.LittleEndian.PutUint16(frame[0:2], uint16(StatusPending))
	binary.LittleEndian.PutUint16(frame[2:4], 3)

	rep, err := ParseReply(frame)
	if err != nil {
		t.Fatalf("a %d-byte frame should parse: %v", MinReplyFrameSize, err)
	}
	if rep.Status != StatusPending || rep.ID != 3 {
		t.Errorf("parsed fields mismatch: %+v", rep)
	}
}

func TestParseReplyIgnoresTrailingBytes(t *testing.T) {
	frame := make([]byte, 24)
	binary.LittleEndian.PutUint16(frame[0:2], uint16(StatusBusy))
	for i := ReplyFrameSize; i < len(frame); i++ {
		frame[i] = 0xFF
	}

	rep, err := ParseReply(frame)
	if err != nil {
		t.Fatalf("an oversized frame should parse: %v", err)
	}
	if rep.Status != StatusBusy {
		t.Errorf("status should be BUSY, got %s", rep.Status)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	statuses := []Status{
		StatusOK, StatusError, StatusPending, StatusBusy,
		StatusNoMemory, StatusNotFound, Status(0x7FFF),
	}

	for _, status := range statuses {
		in := &Reply{Status: status, ID: 0x1234, Size: 0x00010002, Result: -210}

		frame := MarshalReply(in)
		if len(frame) != ReplyFrameSize {
			t.Fatalf("marshalled frame should be %d bytes, got %d", ReplyFrameSize, len(frame))
		}

		out, err := ParseReply(frame)
		if err != nil {
			t.Fatalf("round trip parse failed for status %s: %v", status, err)
		}
		if *out != *in {
			t.Errorf("round trip mismatch for status %s:\n got %+v\nwant %+v", status, out, in)
		}
		if !bytes.Equal(MarshalReply(out), frame) {
			t.Errorf("re-encoding should reproduce the frame for status %s", status)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusOK, "OK"},
		{StatusError, "ERROR"},
		{StatusPending, "PENDING"},
		{StatusBusy, "BUSY"},
		{StatusNoMemory, "NO_MEMORY"},
		{StatusNotFound, "NOT_FOUND"},
		{Status(42), "Status(42)"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() should be %q, got %q", tt.status, tt.want, got)
		}
	}
}
