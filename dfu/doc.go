// Package dfu implements the host side of the USB Device Firmware Upgrade
// class, revision 1.1, as spoken by Ion devices in bootloader mode.
//
// The client claims interface 0 (alternate setting 0) and drives the
// device-side DFU state machine with the seven standard class requests. Its
// main job is Leave: transitioning a device out of the bootloader cleanly by
// normalizing the state machine to an idle state and triggering the
// manifestation phase with a zero-length DNLOAD.
//
//	ctx := usb.NewContext()
//	defer ctx.Close()
//
//	tr, err := ctx.OpenByID(id)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := dfu.New(tr)
//	if err := client.Open(); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Leave(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// After a successful Leave the device enters dfuMANIFEST-WAIT-RESET and
// resets itself; the USB handle must be treated as lost and only closed.
//
// Some device generations report OK/dfuDNLOAD-IDLE instead of dfuMANIFEST
// after the manifest trigger; Leave accepts both.
package dfu
