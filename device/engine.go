package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcudev/go-ionctl/protocol"
	"github.com/mcudev/go-ionctl/usb"
)

// The pump is the only goroutine that touches the transport, so at most one
// USB transfer is in flight per device at any instant. It repeatedly picks
// the highest-priority action; when none is available it sleeps until poked
// by a submission, a timer or a close request.
func (d *Device) pump() {
	for {
		act, r := d.nextAction()
		switch act {
		case actNone:
			<-d.wake
		case actResetAll:
			d.performResetAll()
		case actResetSlot:
			d.performReset(r)
		case actCheck:
			if d.performCheck(r) {
				return
			}
		case actInit:
			if d.performInit(r) {
				return
			}
		case actClose:
			d.performClose()
			return
		}
	}
}

type pumpAction int

const (
	actNone pumpAction = iota
	actResetAll
	actResetSlot
	actCheck
	actInit
	actClose
)

// nextAction picks the next pump step, in strict priority order: global
// reset, slot resets, checks, inits, close. Done requests discovered at
// dequeue time are discarded.
func (d *Device) nextAction() (pumpAction, *request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.wantClose && d.state == StateOpen {
		d.state = StateClosing
	}

	if d.resetAll {
		return actResetAll, nil
	}
	if len(d.resetting) > 0 {
		r := d.resetting[0]
		d.resetting = d.resetting[1:]
		return actResetSlot, r
	}
	if r := popLive(&d.checking); r != nil {
		return actCheck, r
	}
	if !d.maxActiveOn || d.activeCount < d.maxActive {
		if r := popLive(&d.pending); r != nil {
			return actInit, r
		}
	}
	if d.state == StateClosing && d.activeCount == 0 &&
		len(d.pending) == 0 && len(d.checking) == 0 {
		return actClose, nil
	}
	return actNone, nil
}

// popLive pops the first request with done == false, discarding done entries
// encountered on the way.
func popLive(q *[]*request) *request {
	for len(*q) > 0 {
		r := (*q)[0]
		*q = (*q)[1:]
		if !r.done {
			return r
		}
	}
	return nil
}

// poke wakes the pump if it is sleeping. Never blocks.
func (d *Device) poke() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// performResetAll issues a global RESET reclaiming every slot held by this
// host. The flag clears regardless of the transfer outcome.
func (d *Device) performResetAll() {
	if err := d.tr.TransferOut(context.Background(), protocol.ResetSetup(0), nil); err != nil {
		d.cfg.logger.Error("global reset failed", "error", err)
	}
	d.mu.Lock()
	d.resetAll = false
	d.activeCount = 0
	d.mu.Unlock()
}

// performReset releases the slot held by a terminated request.
func (d *Device) performReset(r *request) {
	if r.protoID == 0 {
		d.cfg.logger.Error("invariant violation", "error", &InternalError{Message: "resetting entry without a slot"})
		return
	}
	if err := d.tr.TransferOut(context.Background(), protocol.ResetSetup(r.protoID), nil); err != nil {
		d.cfg.logger.Error("slot reset failed", "proto_id", r.protoID, "error", err)
	}
	d.mu.Lock()
	if d.activeCount > 0 {
		d.activeCount--
	}
	d.mu.Unlock()
}

// performInit runs the INIT sub-protocol for a pending request. Returns true
// when a transport fault closed the handle and the pump must exit.
func (d *Device) performInit(r *request) bool {
	setup := protocol.InitSetup(r.reqType, uint16(len(r.data)))
	frame, err := d.tr.TransferIn(context.Background(), setup)
	if err != nil {
		return d.fatal(r, "init", err)
	}
	rep, perr := protocol.ParseReply(frame)
	if perr != nil {
		d.failRequest(r, perr)
		return false
	}

	switch rep.Status {
	case protocol.StatusOK:
		d.mu.Lock()
		r.protoID = rep.ID
		d.activeCount++
		timedOut := r.done
		d.mu.Unlock()
		if timedOut {
			// The deadline fired while INIT was in flight; the slot was
			// allocated anyway and must be reclaimed.
			d.reclaim(r)
			return false
		}
		if len(r.data) > 0 {
			if err := d.tr.TransferOut(context.Background(), protocol.SendSetup(r.protoID, uint16(len(r.data))), r.data); err != nil {
				return d.fatal(r, "send", err)
			}
		}
		d.mu.Lock()
		// A deadline firing after the slot was assigned has already queued
		// the reclaim; only live requests advance.
		if !r.done {
			r.dataSent = true
			d.armPollLocked(r)
		}
		d.mu.Unlock()

	case protocol.StatusPending:
		// The device accepted the request but has not allocated a payload
		// buffer yet; a later CHECK triggers the SEND. Only meaningful when
		// there is a payload to send.
		d.mu.Lock()
		r.protoID = rep.ID
		d.activeCount++
		timedOut := r.done
		if !timedOut && len(r.data) > 0 {
			d.armPollLocked(r)
		}
		d.mu.Unlock()
		if timedOut {
			d.reclaim(r)
		} else if len(r.data) == 0 {
			d.failRequest(r, protocol.UnexpectedStatus("init", rep.Status))
		}

	case protocol.StatusBusy:
		// Learn the device's concurrency cap and retry once a slot frees.
		d.mu.Lock()
		d.maxActive = d.activeCount
		d.maxActiveOn = true
		if !r.done {
			d.pending = append([]*request{r}, d.pending...)
		}
		limit := d.maxActive
		d.mu.Unlock()
		d.cfg.logger.Debug("concurrency cap learned", "max_active", limit)

	case protocol.StatusNoMemory:
		d.failRequest(r, &MemoryError{})

	default:
		d.failRequest(r, protocol.UnexpectedStatus("init", rep.Status))
	}
	return false
}

// performCheck runs the CHECK sub-protocol for an active request. Returns
// true when a transport fault closed the handle and the pump must exit.
func (d *Device) performCheck(r *request) bool {
	d.mu.Lock()
	r.checkCount++
	pid := r.protoID
	d.mu.Unlock()

	frame, err := d.tr.TransferIn(context.Background(), protocol.CheckSetup(pid))
	if err != nil {
		return d.fatal(r, "check", err)
	}
	rep, perr := protocol.ParseReply(frame)
	if perr != nil {
		d.failRequest(r, perr)
		return false
	}

	switch rep.Status {
	case protocol.StatusOK:
		if r.dataSent {
			return d.completeRequest(r, pid, rep)
		}
		// Payload-allocation CHECK for a pending INIT: the buffer is ready,
		// upload the payload now.
		if err := d.tr.TransferOut(context.Background(), protocol.SendSetup(pid, uint16(len(r.data))), r.data); err != nil {
			return d.fatal(r, "send", err)
		}
		d.mu.Lock()
		r.dataSent = true
		r.checkCount = 0
		d.armPollLocked(r)
		d.mu.Unlock()

	case protocol.StatusPending:
		d.mu.Lock()
		d.armPollLocked(r)
		d.mu.Unlock()

	case protocol.StatusNoMemory:
		d.failRequest(r, &MemoryError{})

	case protocol.StatusNotFound:
		// The slot no longer exists; nothing left to reclaim.
		d.mu.Lock()
		if d.activeCount > 0 {
			d.activeCount--
		}
		r.protoID = 0
		d.mu.Unlock()
		d.failRequest(r, &DeviceError{Message: "request was cancelled"})

	default:
		d.failRequest(r, protocol.UnexpectedStatus("check", rep.Status))
	}
	return false
}

// completeRequest finishes a request whose terminal CHECK reported OK:
// download the reply payload if any and resolve the caller. The firmware
// frees the slot once the reply has been read, so no RESET is issued here.
func (d *Device) completeRequest(r *request, pid uint16, rep *protocol.Reply) bool {
	reply := &Reply{Result: rep.Result, IsText: r.isText}
	if rep.Size > 0 {
		if rep.Size > protocol.MaxPayloadSize {
			d.failRequest(r, &protocol.Error{
				Op:      "check",
				Message: fmt.Sprintf("reply size %d exceeds maximum %d", rep.Size, protocol.MaxPayloadSize),
			})
			return false
		}
		data, err := d.tr.TransferIn(context.Background(), protocol.RecvSetup(pid, rep.Size))
		if err != nil {
			return d.fatal(r, "recv", err)
		}
		if uint32(len(data)) != rep.Size {
			d.failRequest(r, &protocol.Error{
				Op:      "recv",
				Message: fmt.Sprintf("reply payload size mismatch: got %d bytes, want %d", len(data), rep.Size),
			})
			return false
		}
		reply.Data = data
	}
	d.mu.Lock()
	if !r.done {
		if d.activeCount > 0 {
			d.activeCount--
		}
		d.resolveLocked(r, reply)
	}
	d.mu.Unlock()
	return false
}

// armPollLocked schedules the next CHECK according to the request's polling
// policy. Caller holds d.mu.
func (d *Device) armPollLocked(r *request) {
	if r.done {
		return
	}
	delay := r.policy(r.checkCount)
	r.pollTimer = time.AfterFunc(delay, func() {
		d.enqueueCheck(r)
	})
}

// enqueueCheck moves a request back onto the checking queue when its polling
// timer fires.
func (d *Device) enqueueCheck(r *request) {
	d.mu.Lock()
	if r.done || (d.state != StateOpen && d.state != StateClosing) {
		d.mu.Unlock()
		return
	}
	d.checking = append(d.checking, r)
	d.mu.Unlock()
	d.poke()
}

// reclaim queues a terminated request's slot for RESET.
func (d *Device) reclaim(r *request) {
	d.mu.Lock()
	d.resetting = append(d.resetting, r)
	d.mu.Unlock()
	d.poke()
}

// failRequest rejects a request unless it is already terminal. If the
// request holds a protocol slot it is queued for RESET.
func (d *Device) failRequest(r *request, err error) {
	d.mu.Lock()
	if r.done {
		d.mu.Unlock()
		return
	}
	r.done = true
	r.stopTimers()
	delete(d.reqs, r.id)
	if r.protoID != 0 {
		d.resetting = append(d.resetting, r)
	}
	d.mu.Unlock()
	r.ch <- outcome{err: err}
	d.poke()
}

// resolveLocked delivers a successful reply. Caller holds d.mu; no-op when
// the request is already terminal.
func (d *Device) resolveLocked(r *request, reply *Reply) {
	if r.done {
		return
	}
	r.done = true
	r.stopTimers()
	delete(d.reqs, r.id)
	r.ch <- outcome{reply: reply}
}

// rejectAllLocked terminates every unfinished request with err. When reclaim
// is set, requests holding slots are queued for RESET so the device frees
// them before the handle closes. Caller holds d.mu.
func (d *Device) rejectAllLocked(err error, reclaim bool) {
	for _, r := range d.reqs {
		if r.done {
			continue
		}
		r.done = true
		r.stopTimers()
		if reclaim && r.protoID != 0 {
			d.resetting = append(d.resetting, r)
		}
		r.ch <- outcome{err: err}
	}
	d.reqs = make(map[uint32]*request)
}

// fatal handles a transport failure: the outstanding request is rejected
// with the transfer error, every other request with a state error, and the
// handle closes without attempting further transfers. Always returns true so
// pump call sites can exit directly.
func (d *Device) fatal(r *request, op string, cause error) bool {
	uerr := cause
	var ue *usb.Error
	if !errors.As(cause, &ue) {
		uerr = &usb.Error{Op: op, Cause: cause}
	}
	d.cfg.logger.Error("transport failure", "op", op, "error", cause)
	if r != nil {
		d.mu.Lock()
		if !r.done {
			r.done = true
			r.stopTimers()
			delete(d.reqs, r.id)
			r.ch <- outcome{err: uerr}
		}
		d.mu.Unlock()
	}
	d.mu.Lock()
	d.rejectAllLocked(&StateError{Message: "device is being closed"}, false)
	d.pending, d.checking, d.resetting = nil, nil, nil
	d.resetAll = false
	d.mu.Unlock()
	d.performClose()
	return true
}

// performClose closes the USB device and retires the handle. Any request
// that somehow survived the drain is rejected first.
func (d *Device) performClose() {
	d.mu.Lock()
	d.rejectAllLocked(&StateError{Message: "device is being closed"}, false)
	if d.closeTimer != nil {
		d.closeTimer.Stop()
		d.closeTimer = nil
	}
	d.mu.Unlock()

	if err := d.tr.Close(); err != nil {
		d.cfg.logger.Error("usb close failed", "error", err)
	}

	d.mu.Lock()
	d.state = StateClosed
	d.wantClose = false
	d.resetAll = false
	d.pending, d.checking, d.resetting = nil, nil, nil
	d.id = ""
	d.fwVersion = ""
	closedCh := d.closedCh
	d.mu.Unlock()

	d.cfg.logger.Info("device closed")
	if d.cfg.onClosed != nil {
		d.cfg.onClosed()
	}
	// Close unblocks only after the closed callback has run.
	close(closedCh)
}
