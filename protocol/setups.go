package protocol

import (
	"github.com/mcudev/go-ionctl/usb"
)

// bmRequestType values for service frames: vendor request to the device.
const (
	requestTypeIn  = usb.DirectionIn | usb.TypeVendor | usb.RecipientDevice  // 0xC0
	requestTypeOut = usb.DirectionOut | usb.TypeVendor | usb.RecipientDevice // 0x40
)

// InitSetup builds the INIT frame opening a protocol slot for a logical
// request of the given type. The payload size is advertised through wLength,
// floored at ReplyFrameSize so the reply frame stays readable for short
// payloads; the exact payload length arrives with the SEND data stage.
func InitSetup(requestType uint16, payloadSize uint16) usb.Setup {
	length := uint16(ReplyFrameSize)
	if payloadSize > length {
		length = payloadSize
	}
	return usb.Setup{
		RequestType: requestTypeIn,
		Request:     BRequestService,
		Value:       requestType,
		Index:       uint16(KindInit),
		Length:      length,
	}
}

// CheckSetup builds the CHECK frame polling the slot identified by protoID.
func CheckSetup(protoID uint16) usb.Setup {
	return usb.Setup{
		RequestType: requestTypeIn,
		Request:     BRequestService,
		Value:       protoID,
		Index:       uint16(KindCheck),
		Length:      ReplyFrameSize,
	}
}

// SendSetup builds the SEND frame uploading size payload bytes to the slot.
// The payload itself travels as the data stage of the transfer.
func SendSetup(protoID uint16, size uint16) usb.Setup {
	return usb.Setup{
		RequestType: requestTypeOut,
		Request:     BRequestService,
		Value:       protoID,
		Index:       uint16(KindSend),
		Length:      size,
	}
}

// RecvSetup builds the RECV frame downloading size reply bytes from the slot.
// size must not exceed MaxPayloadSize.
func RecvSetup(protoID uint16, size uint32) usb.Setup {
	return usb.Setup{
		RequestType: requestTypeIn,
		Request:     BRequestService,
		Value:       protoID,
		Index:       uint16(KindRecv),
		Length:      uint16(size),
	}
}

// ResetSetup builds the RESET frame releasing the slot identified by protoID.
// A protoID of 0 releases every slot held by this host.
func ResetSetup(protoID uint16) usb.Setup {
	return usb.Setup{
		RequestType: requestTypeOut,
		Request:     BRequestService,
		Value:       protoID,
		Index:       uint16(KindReset),
		Length:      0,
	}
}
