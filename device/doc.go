// Package device provides the stateful Ion device handle and the request
// engine behind it.
//
// # Overview
//
// A Device wraps a usb.Transport and multiplexes logical requests over the
// single control endpoint: submissions are queued, INIT'd against the
// device's protocol slots, polled with CHECK until the firmware finishes,
// and their reply payloads downloaded with RECV. Slots abandoned by timeouts
// are reclaimed with RESET.
//
// # Basic Usage
//
//	ctx := usb.NewContext()
//	defer ctx.Close()
//
//	tr, err := ctx.OpenByID("3c0021000a47373336373936")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dev := device.New(tr, device.WithDeviceType(tr.Entry().Type))
//	if err := dev.Open(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close(context.Background())
//
//	reply, err := dev.SendRequest(context.Background(), 112, payload)
//
// # Concurrency
//
// SendRequest is safe for concurrent use; many logical requests may be in
// flight at once. A single pump goroutine owns the transport, so at most one
// USB transfer is outstanding per device at any instant. The device reports
// its concurrency cap by answering BUSY to an INIT; once learned the cap is
// never raised for the remainder of the open cycle.
//
// # Timeouts and Polling
//
// Each request carries a deadline (default 30 seconds) and a polling policy
// deciding the delay before each CHECK. See WithTimeout, WithPollingPolicy
// and the PollingPolicy implementations in this package.
package device
