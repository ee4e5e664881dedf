package dfu

import "fmt"

// DFU class requests per DFU 1.1 section 3.
const (
	ReqDetach    uint8 = 0
	ReqDnload    uint8 = 1
	ReqUpload    uint8 = 2
	ReqGetStatus uint8 = 3
	ReqClrStatus uint8 = 4
	ReqGetState  uint8 = 5
	ReqAbort     uint8 = 6
)

// InterfaceNumber and AltSetting identify the DFU interface on Ion
// bootloaders.
const (
	InterfaceNumber = 0
	AltSetting      = 0
)

// GetStatusSize is the size of the GETSTATUS response: bStatus(1),
// bwPollTimeout(3), bState(1), iString(1).
const GetStatusSize = 6

// State is a device-side DFU state per DFU 1.1 appendix A.
type State uint8

// DFU states, numeric values 0-10 in declaration order.
const (
	StateAppIdle State = iota
	StateAppDetach
	StateDfuIdle
	StateDfuDnloadSync
	StateDfuDnbusy
	StateDfuDnloadIdle
	StateDfuManifestSync
	StateDfuManifest
	StateDfuManifestWaitReset
	StateDfuUploadIdle
	StateDfuError
)

// String returns the DFU 1.1 state name.
func (s State) String() string {
	switch s {
	case StateAppIdle:
		return "appIDLE"
	case StateAppDetach:
		return "appDETACH"
	case StateDfuIdle:
		return "dfuIDLE"
	case StateDfuDnloadSync:
		return "dfuDNLOAD-SYNC"
	case StateDfuDnbusy:
		return "dfuDNBUSY"
	case StateDfuDnloadIdle:
		return "dfuDNLOAD-IDLE"
	case StateDfuManifestSync:
		return "dfuMANIFEST-SYNC"
	case StateDfuManifest:
		return "dfuMANIFEST"
	case StateDfuManifestWaitReset:
		return "dfuMANIFEST-WAIT-RESET"
	case StateDfuUploadIdle:
		return "dfuUPLOAD-IDLE"
	case StateDfuError:
		return "dfuERROR"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Status is a device-side DFU status per DFU 1.1 appendix A.
type Status uint8

// DFU status codes 0x00-0x0F.
const (
	StatusOK Status = iota
	StatusErrTarget
	StatusErrFile
	StatusErrWrite
	StatusErrErase
	StatusErrCheckErased
	StatusErrProg
	StatusErrVerify
	StatusErrAddress
	StatusErrNotDone
	StatusErrFirmware
	StatusErrVendor
	StatusErrUsbr
	StatusErrPor
	StatusErrUnknown
	StatusErrStalledPkt
)

// String returns the DFU 1.1 status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusErrTarget:
		return "errTARGET"
	case StatusErrFile:
		return "errFILE"
	case StatusErrWrite:
		return "errWRITE"
	case StatusErrErase:
		return "errERASE"
	case StatusErrCheckErased:
		return "errCHECK_ERASED"
	case StatusErrProg:
		return "errPROG"
	case StatusErrVerify:
		return "errVERIFY"
	case StatusErrAddress:
		return "errADDRESS"
	case StatusErrNotDone:
		return "errNOTDONE"
	case StatusErrFirmware:
		return "errFIRMWARE"
	case StatusErrVendor:
		return "errVENDOR"
	case StatusErrUsbr:
		return "errUSBR"
	case StatusErrPor:
		return "errPOR"
	case StatusErrUnknown:
		return "errUNKNOWN"
	case StatusErrStalledPkt:
		return "errSTALLEDPKT"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}
