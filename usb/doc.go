// Package usb abstracts the USB control-transfer layer used to talk to Ion
// devices.
//
// The core abstraction is the Transport interface: open/close a device,
// perform a single IN or OUT control transfer, and read the serial-number
// descriptor. At most one transfer may be in flight per device; callers above
// this package are responsible for serializing access.
//
// # Native Backend
//
// GousbTransport implements Transport on top of github.com/google/gousb
// (libusb). A Context owns the libusb session and provides enumeration
// against the static Ion device table:
//
//	ctx := usb.NewContext()
//	defer ctx.Close()
//
//	devs, err := ctx.Enumerate()
//	// or
//	dev, err := ctx.OpenByID("3c0021000a47373336373936")
//
// # Mocking
//
// Transport is intentionally small so tests and simulators can implement it
// without libusb. See the device and dfu package tests for scripted examples.
package usb
