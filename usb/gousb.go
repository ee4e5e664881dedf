package usb

import (
	"context"
	"strings"
	"time"

	"github.com/google/gousb"
)

// Context owns a libusb session. All transports obtained from a Context
// become invalid when it is closed.
type Context struct {
	ctx *gousb.Context
}

// NewContext initializes a libusb session.
func NewContext() *Context {
	return &Context{ctx: gousb.NewContext()}
}

// Close releases the libusb session.
func (c *Context) Close() error {
	return c.ctx.Close()
}

// Enumerate opens every attached device whose (vendor, product) pair appears
// in the Ion device table. The caller owns the returned transports and must
// Close each of them.
func (c *Context) Enumerate() ([]*GousbTransport, error) {
	devs, err := c.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, _, ok := Lookup(uint16(desc.Vendor), uint16(desc.Product))
		return ok
	})
	if err != nil {
		// OpenDevices may return devices it could open alongside an error
		// for ones it could not; release the partial set.
		for _, d := range devs {
			_ = d.Close()
		}
		return nil, &Error{Op: "enumerate", Cause: err}
	}

	out := make([]*GousbTransport, 0, len(devs))
	for _, d := range devs {
		entry, dfu, _ := Lookup(uint16(d.Desc.Vendor), uint16(d.Desc.Product))
		out = append(out, &GousbTransport{
			dev:     d,
			entry:   entry,
			dfu:     dfu,
			timeout: DefaultControlTimeout,
		})
	}
	return out, nil
}

// OpenByID enumerates attached Ion devices, returns the one whose lowercase
// serial number equals id, and closes the others. Fails with NotFoundError
// when no attached device matches.
func (c *Context) OpenByID(id string) (*GousbTransport, error) {
	id = strings.ToLower(id)

	devs, err := c.Enumerate()
	if err != nil {
		return nil, err
	}

	var found *GousbTransport
	for _, d := range devs {
		if found == nil {
			serial, err := d.SerialNumber()
			if err == nil && strings.ToLower(serial) == id {
				found = d
				continue
			}
		}
		_ = d.Close()
	}
	if found == nil {
		return nil, &NotFoundError{What: "device " + id}
	}
	return found, nil
}

// GousbTransport implements Transport on top of github.com/google/gousb.
type GousbTransport struct {
	dev     *gousb.Device
	entry   DeviceEntry
	dfu     bool
	timeout time.Duration

	cfg   *gousb.Config
	intf  *gousb.Interface
	intfN int
}

var _ Transport = (*GousbTransport)(nil)

// Entry returns the device-table entry the transport was matched against.
func (t *GousbTransport) Entry() DeviceEntry {
	return t.entry
}

// InDFUMode reports whether the device enumerated with its DFU-mode IDs.
func (t *GousbTransport) InDFUMode() bool {
	return t.dfu
}

// SetControlTimeout overrides the per-transfer timeout.
func (t *GousbTransport) SetControlTimeout(d time.Duration) {
	t.timeout = d
	if t.dev != nil {
		t.dev.ControlTimeout = d
	}
}

// Open prepares the device. The underlying handle is already open (libusb
// enumeration opens devices); this detaches kernel drivers and applies the
// transfer timeout.
func (t *GousbTransport) Open() error {
	if err := t.dev.SetAutoDetach(true); err != nil {
		return &Error{Op: "set auto detach", Cause: err}
	}
	t.dev.ControlTimeout = t.timeout
	return nil
}

// Close releases claimed interfaces and the device handle.
func (t *GousbTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		_ = t.cfg.Close()
		t.cfg = nil
	}
	if err := t.dev.Close(); err != nil {
		return &Error{Op: "close", Cause: err}
	}
	return nil
}

// TransferIn performs a device-to-host control transfer.
func (t *GousbTransport) TransferIn(ctx context.Context, setup Setup) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "transfer in", Cause: err}
	}
	buf := make([]byte, setup.Length)
	n, err := t.dev.Control(setup.RequestType, setup.Request, setup.Value, setup.Index, buf)
	if err != nil {
		return nil, &Error{Op: "transfer in", Cause: err}
	}
	return buf[:n], nil
}

// TransferOut performs a host-to-device control transfer.
func (t *GousbTransport) TransferOut(ctx context.Context, setup Setup, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "transfer out", Cause: err}
	}
	if _, err := t.dev.Control(setup.RequestType, setup.Request, setup.Value, setup.Index, data); err != nil {
		return &Error{Op: "transfer out", Cause: err}
	}
	return nil
}

// ClaimInterface selects configuration 1 and claims interface number with the
// given alternate setting on it.
func (t *GousbTransport) ClaimInterface(number, alternate int) error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return &Error{Op: "claim interface", Cause: err}
	}
	intf, err := cfg.Interface(number, alternate)
	if err != nil {
		_ = cfg.Close()
		return &Error{Op: "claim interface", Cause: err}
	}
	t.cfg = cfg
	t.intf = intf
	t.intfN = number
	return nil
}

// ReleaseInterface releases a previously claimed interface.
func (t *GousbTransport) ReleaseInterface(number int) error {
	if t.intf == nil || t.intfN != number {
		return nil
	}
	t.intf.Close()
	t.intf = nil
	if t.cfg != nil {
		_ = t.cfg.Close()
		t.cfg = nil
	}
	return nil
}

// SerialNumber reads the string serial-number descriptor.
func (t *GousbTransport) SerialNumber() (string, error) {
	s, err := t.dev.SerialNumber()
	if err != nil {
		return "", &Error{Op: "serial number", Cause: err}
	}
	return s, nil
}

// VendorID returns the device vendor ID.
func (t *GousbTransport) VendorID() uint16 {
	return uint16(t.dev.Desc.Vendor)
}

// ProductID returns the device product ID.
func (t *GousbTransport) ProductID() uint16 {
	return uint16(t.dev.Desc.Product)
}
