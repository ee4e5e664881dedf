// Package protocol implements the Ion service-request wire protocol carried
// over USB control transfers.
//
// A logical request is multiplexed over the single control endpoint using
// five service frames, distinguished by the wIndex field of the setup packet:
//
//	INIT   (IN)  open a protocol slot for a new logical request
//	CHECK  (IN)  poll progress and fetch the result code
//	SEND   (OUT) upload the request payload as the data stage
//	RECV   (IN)  download the reply payload as the data stage
//	RESET  (OUT) release a slot (or all slots when the ID is 0)
//
// All service frames use the vendor bRequest 0x50. IN frames other than RECV
// return a service-reply frame:
//
//	offset 0  status  u16  (little-endian)
//	offset 2  id      u16  protocol slot handle
//	offset 4  size    u32  reply payload length
//	offset 8  result  i32  caller-visible result code
//
// Frames shorter than 12 bytes are rejected; trailing bytes beyond offset 12
// are reserved and ignored.
//
// The package only builds setup packets and parses reply frames; it never
// talks to a transport.
package protocol
