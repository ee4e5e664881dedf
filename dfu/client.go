package dfu

import (
	"context"
	"fmt"
	"time"

	"github.com/mcudev/go-ionctl/usb"
)

// bmRequestType values for DFU class requests: class request to interface.
const (
	requestTypeOut = usb.DirectionOut | usb.TypeClass | usb.RecipientInterface // 0x21
	requestTypeIn  = usb.DirectionIn | usb.TypeClass | usb.RecipientInterface  // 0xA1
)

// DfuError indicates a DFU state-machine violation. The caller may retry the
// leave sequence.
type DfuError struct {
	// Message describes the violation
	Message string
}

func (e *DfuError) Error() string {
	return fmt.Sprintf("dfu: %s", e.Message)
}

// DeviceStatus is a parsed GETSTATUS response.
type DeviceStatus struct {
	// Status is the result of the most recent request
	Status Status

	// PollTimeout is the minimum wait before the next GETSTATUS
	PollTimeout time.Duration

	// State is the device-side DFU state
	State State

	// StringIndex is the iString descriptor index, usually 0
	StringIndex uint8
}

// Logger matches the device package's logging interface so the same
// implementation can serve both.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithLogger sets a logger for DFU operations.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client drives the DFU state machine of one bootloader-mode device.
type Client struct {
	tr  usb.Transport
	log Logger
}

// New creates a DFU client over the given transport.
func New(tr usb.Transport, opts ...Option) *Client {
	c := &Client{tr: tr, log: nopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens the USB device and claims the DFU interface.
func (c *Client) Open() error {
	if err := c.tr.Open(); err != nil {
		return err
	}
	if err := c.tr.ClaimInterface(InterfaceNumber, AltSetting); err != nil {
		_ = c.tr.Close()
		return err
	}
	return nil
}

// Close releases the DFU interface and closes the USB device.
func (c *Client) Close() error {
	_ = c.tr.ReleaseInterface(InterfaceNumber)
	return c.tr.Close()
}

// GetStatus issues GETSTATUS and parses the 6-byte response.
func (c *Client) GetStatus(ctx context.Context) (*DeviceStatus, error) {
	setup := usb.Setup{
		RequestType: requestTypeIn,
		Request:     ReqGetStatus,
		Value:       0,
		Index:       InterfaceNumber,
		Length:      GetStatusSize,
	}
	buf, err := c.tr.TransferIn(ctx, setup)
	if err != nil {
		return nil, err
	}
	if len(buf) < GetStatusSize {
		return nil, &DfuError{Message: fmt.Sprintf("short GETSTATUS response: %d bytes", len(buf))}
	}
	timeout := uint32(buf[1]) | uint32(buf[2])<<8 | uint32(buf[3])<<16
	return &DeviceStatus{
		Status:      Status(buf[0]),
		PollTimeout: time.Duration(timeout) * time.Millisecond,
		State:       State(buf[4]),
		StringIndex: buf[5],
	}, nil
}

// GetState issues GETSTATE and returns the device-side state.
func (c *Client) GetState(ctx context.Context) (State, error) {
	setup := usb.Setup{
		RequestType: requestTypeIn,
		Request:     ReqGetState,
		Value:       0,
		Index:       InterfaceNumber,
		Length:      1,
	}
	buf, err := c.tr.TransferIn(ctx, setup)
	if err != nil {
		return StateDfuError, err
	}
	if len(buf) < 1 {
		return StateDfuError, &DfuError{Message: "empty GETSTATE response"}
	}
	return State(buf[0]), nil
}

// ClearStatus issues CLRSTATUS, moving a device in dfuERROR back to dfuIDLE.
func (c *Client) ClearStatus(ctx context.Context) error {
	setup := usb.Setup{
		RequestType: requestTypeOut,
		Request:     ReqClrStatus,
		Value:       0,
		Index:       InterfaceNumber,
		Length:      0,
	}
	return c.tr.TransferOut(ctx, setup, nil)
}

// Abort issues ABORT, returning the device to dfuIDLE from an idle transfer
// state.
func (c *Client) Abort(ctx context.Context) error {
	setup := usb.Setup{
		RequestType: requestTypeOut,
		Request:     ReqAbort,
		Value:       0,
		Index:       InterfaceNumber,
		Length:      0,
	}
	return c.tr.TransferOut(ctx, setup, nil)
}

// Detach issues DETACH with the given timeout in milliseconds.
func (c *Client) Detach(ctx context.Context, timeoutMs uint16) error {
	setup := usb.Setup{
		RequestType: requestTypeOut,
		Request:     ReqDetach,
		Value:       timeoutMs,
		Index:       InterfaceNumber,
		Length:      0,
	}
	return c.tr.TransferOut(ctx, setup, nil)
}

// Download issues DNLOAD for the given block number. A zero-length download
// in an idle state starts the manifestation phase.
func (c *Client) Download(ctx context.Context, blockNum uint16, data []byte) error {
	setup := usb.Setup{
		RequestType: requestTypeOut,
		Request:     ReqDnload,
		Value:       blockNum,
		Index:       InterfaceNumber,
		Length:      uint16(len(data)),
	}
	return c.tr.TransferOut(ctx, setup, data)
}

// Upload issues UPLOAD for the given block number, reading up to length
// bytes of firmware.
func (c *Client) Upload(ctx context.Context, blockNum uint16, length uint16) ([]byte, error) {
	setup := usb.Setup{
		RequestType: requestTypeIn,
		Request:     ReqUpload,
		Value:       blockNum,
		Index:       InterfaceNumber,
		Length:      length,
	}
	return c.tr.TransferIn(ctx, setup)
}

// Leave transitions the device out of bootloader mode: normalize the state
// machine to an idle state, trigger manifestation with a zero-length DNLOAD
// and verify the transition. After a successful Leave the device resets
// itself; the handle must only be closed.
func (c *Client) Leave(ctx context.Context) error {
	st, err := c.GetStatus(ctx)
	if err != nil {
		// Some bootloaders stall GETSTATUS after a failed operation; clear
		// and retry once.
		if cerr := c.ClearStatus(ctx); cerr != nil {
			return cerr
		}
		if st, err = c.GetStatus(ctx); err != nil {
			return err
		}
	}
	c.log.Debug("dfu state", "state", st.State, "status", st.Status)

	if !leaveReady(st.State) {
		// CLRSTATUS outside dfuERROR may itself fail, dropping the device
		// into dfuERROR; a second CLRSTATUS then reaches dfuIDLE.
		if err := c.ClearStatus(ctx); err != nil {
			if err := c.ClearStatus(ctx); err != nil {
				return err
			}
		}
		if st, err = c.GetStatus(ctx); err != nil {
			return err
		}
		if !leaveReady(st.State) {
			return &DfuError{Message: fmt.Sprintf("invalid state %s", st.State)}
		}
	}

	// A zero-length DNLOAD with a non-zero block number moves an idle device
	// into dfuMANIFEST-SYNC and on to manifestation.
	if err := c.Download(ctx, 1, nil); err != nil {
		return err
	}

	st, err = c.GetStatus(ctx)
	if err != nil {
		return err
	}
	c.log.Debug("dfu state after manifest trigger", "state", st.State, "status", st.Status)

	switch {
	case st.State == StateDfuManifest:
		// Strict DFU 1.1 path.
	case st.Status == StatusOK && st.State == StateDfuDnloadIdle:
		// Older bootloaders acknowledge the manifest trigger without ever
		// reporting dfuMANIFEST.
	default:
		return &DfuError{Message: fmt.Sprintf("invalid DFU state %s (status %s)", st.State, st.Status)}
	}

	c.log.Info("left DFU mode")
	return nil
}

// leaveReady reports whether a zero-length DNLOAD may be issued from state.
func leaveReady(s State) bool {
	return s == StateDfuIdle || s == StateDfuDnloadIdle
}
