package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mcudev/go-ionctl/protocol"
	"github.com/mcudev/go-ionctl/usb"
)

// State is the lifecycle state of a device handle.
type State int

// Handle lifecycle states.
const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Device is a stateful handle to one Ion device. It owns the transport, the
// request queues and all timers; a single pump goroutine serializes USB
// transfers.
type Device struct {
	tr  usb.Transport
	cfg config

	mu        sync.Mutex
	state     State
	id        string
	fwVersion string

	nextID      uint32
	reqs        map[uint32]*request
	pending     []*request
	checking    []*request
	resetting   []*request
	activeCount int
	maxActive   int
	maxActiveOn bool
	resetAll    bool

	wantClose  bool
	closeTimer *time.Timer
	closedCh   chan struct{}
	wake       chan struct{}
}

// New creates a device handle over the given transport. The transport must
// not be shared with another handle.
func New(tr usb.Transport, opts ...Option) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Device{
		tr:     tr,
		cfg:    cfg,
		nextID: 1,
	}
}

// ID returns the lowercase device ID, or "" outside the open state.
func (d *Device) ID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.id
}

// FirmwareVersion returns the firmware version string, or "" if it is not
// known or the handle is not open.
func (d *Device) FirmwareVersion() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fwVersion
}

// Type returns the device type tag the handle was created with, or "" when
// the handle is neither open nor closing.
func (d *Device) Type() usb.DeviceType {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateOpen && d.state != StateClosing {
		return ""
	}
	return d.cfg.deviceType
}

// InDFUMode reports whether the handle was opened against a bootloader-mode
// device.
func (d *Device) InDFUMode() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return (d.state == StateOpen || d.state == StateClosing) && d.cfg.dfuMode
}

// State returns the current lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Open opens the USB device, reads its serial number and starts the request
// engine. Slots left on the device by a previous host session are reclaimed
// with a global RESET before any request is served. Unless disabled, the
// firmware version is queried; a failed version query is tolerated and
// leaves the version empty.
func (d *Device) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateClosed {
		d.mu.Unlock()
		return &StateError{Message: "device is already open"}
	}
	d.state = StateOpening
	d.mu.Unlock()

	if err := d.tr.Open(); err != nil {
		d.mu.Lock()
		d.state = StateClosed
		d.mu.Unlock()
		return wrapUsb("open", err)
	}
	serial, err := d.tr.SerialNumber()
	if err != nil {
		_ = d.tr.Close()
		d.mu.Lock()
		d.state = StateClosed
		d.mu.Unlock()
		return wrapUsb("read serial number", err)
	}

	d.mu.Lock()
	d.id = strings.ToLower(serial)
	d.reqs = make(map[uint32]*request)
	d.pending = nil
	d.checking = nil
	d.resetting = nil
	d.activeCount = 0
	d.maxActive = d.cfg.maxActive
	d.maxActiveOn = d.cfg.maxActive > 0
	d.resetAll = true
	d.wantClose = false
	d.wake = make(chan struct{}, 1)
	d.closedCh = make(chan struct{})
	d.state = StateOpen
	d.mu.Unlock()

	go d.pump()

	d.cfg.logger.Info("device opened", "id", d.ID())

	if d.cfg.queryVersion && !d.cfg.dfuMode {
		if v, err := d.SystemVersion(ctx); err == nil {
			d.mu.Lock()
			d.fwVersion = v
			d.mu.Unlock()
		} else {
			d.cfg.logger.Debug("version query failed", "error", err)
		}
	}

	if d.cfg.onOpen != nil {
		d.cfg.onOpen()
	}
	return nil
}

// Close shuts the handle down. By default unfinished requests run to
// completion before the USB device is closed; WithDiscardPending rejects
// them immediately and WithCloseTimeout bounds the wait. Close blocks until
// the handle is closed or ctx is done; in the latter case the shutdown keeps
// running in the background.
func (d *Device) Close(ctx context.Context, opts ...CloseOption) error {
	cc := closeConfig{processPending: true}
	for _, opt := range opts {
		opt(&cc)
	}

	d.mu.Lock()
	switch d.state {
	case StateClosed:
		d.mu.Unlock()
		return nil
	case StateOpening:
		d.mu.Unlock()
		return &StateError{Message: "device is opening"}
	}
	d.wantClose = true
	if !cc.processPending {
		d.rejectAllLocked(&StateError{Message: "device is being closed"}, true)
	}
	if cc.timeout > 0 && d.closeTimer == nil {
		d.closeTimer = time.AfterFunc(cc.timeout, func() {
			d.mu.Lock()
			d.rejectAllLocked(&StateError{Message: "device is being closed"}, true)
			d.mu.Unlock()
			d.poke()
		})
	}
	ch := d.closedCh
	d.mu.Unlock()
	d.poke()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendRequest submits a logical request and blocks until it completes, times
// out or the context is cancelled. payload may be nil; its length must not
// exceed protocol.MaxPayloadSize. Unless WithRawResult is given, a reply
// with a non-zero result code fails the call with a RequestError.
func (d *Device) SendRequest(ctx context.Context, reqType uint16, payload []byte, opts ...RequestOption) (*Reply, error) {
	return d.submit(ctx, reqType, payload, false, opts)
}

// SendTextRequest submits a logical request with a text payload. The reply
// payload is returned as text of the same encoding.
func (d *Device) SendTextRequest(ctx context.Context, reqType uint16, payload string, opts ...RequestOption) (*Reply, error) {
	var data []byte
	if payload != "" {
		data = []byte(payload)
	}
	return d.submit(ctx, reqType, data, true, opts)
}

// SystemVersion queries the firmware version string.
func (d *Device) SystemVersion(ctx context.Context, opts ...RequestOption) (string, error) {
	reply, err := d.SendTextRequest(ctx, protocol.TypeSystemVersion, "", opts...)
	if err != nil {
		return "", err
	}
	return reply.Text(), nil
}

// Reset asks the firmware to reboot the device. The USB handle should be
// closed afterwards.
func (d *Device) Reset(ctx context.Context, opts ...RequestOption) error {
	_, err := d.SendRequest(ctx, protocol.TypeSystemReset, nil, opts...)
	return err
}

func (d *Device) submit(ctx context.Context, reqType uint16, payload []byte, isText bool, opts []RequestOption) (*Reply, error) {
	rc := requestConfig{
		timeout: d.cfg.requestTimeout,
		policy:  d.cfg.policy,
		isText:  isText,
	}
	for _, opt := range opts {
		opt(&rc)
	}

	if len(payload) > protocol.MaxPayloadSize {
		return nil, &DeviceError{
			Message: fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), protocol.MaxPayloadSize),
		}
	}

	d.mu.Lock()
	if d.state != StateOpen || d.wantClose {
		d.mu.Unlock()
		return nil, &StateError{Message: "device is not open"}
	}
	if rc.timeout <= 0 {
		d.mu.Unlock()
		return nil, &TimeoutError{}
	}
	r := &request{
		id:        d.nextID,
		reqType:   reqType,
		data:      payload,
		isText:    rc.isText,
		rawResult: rc.rawResult,
		policy:    rc.policy,
		deadline:  time.Now().Add(rc.timeout),
		ch:        make(chan outcome, 1),
	}
	d.nextID++
	d.reqs[r.id] = r
	d.pending = append(d.pending, r)
	r.deadlineTimer = time.AfterFunc(rc.timeout, func() {
		d.failRequest(r, &TimeoutError{})
	})
	d.mu.Unlock()
	d.poke()

	select {
	case out := <-r.ch:
		return finishRequest(r, out)
	case <-ctx.Done():
		d.failRequest(r, &DeviceError{Message: "request was cancelled", Cause: ctx.Err()})
		out := <-r.ch
		return finishRequest(r, out)
	}
}

func finishRequest(r *request, out outcome) (*Reply, error) {
	if out.err != nil {
		return nil, out.err
	}
	if !r.rawResult && out.reply.Result != protocol.ResultOK {
		return nil, newRequestError(out.reply.Result)
	}
	return out.reply, nil
}

// wrapUsb keeps transport errors that already carry an operation and wraps
// bare ones.
func wrapUsb(op string, err error) error {
	if _, ok := err.(*usb.Error); ok {
		return err
	}
	return &usb.Error{Op: op, Cause: err}
}
