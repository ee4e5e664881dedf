package device

import (
	"context"
	"errors"
	"sync"

	"github.com/mcudev/go-ionctl/protocol"
	"github.com/mcudev/go-ionctl/usb"
)

// mockTransport records every control transfer and delegates replies to a
// handler, so tests can script arbitrary firmware behavior.
type mockTransport struct {
	mu      sync.Mutex
	serial  string
	opened  bool
	closed  bool
	handler func(setup usb.Setup, data []byte) ([]byte, error)
	records []transferRecord
}

type transferRecord struct {
	setup usb.Setup
	data  []byte
}

func newMockTransport(handler func(usb.Setup, []byte) ([]byte, error)) *mockTransport {
	return &mockTransport{
		serial:  "3C0021000A47373336373936",
		handler: handler,
	}
}

func (m *mockTransport) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	m.closed = false
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransport) TransferIn(ctx context.Context, setup usb.Setup) ([]byte, error) {
	m.mu.Lock()
	m.records = append(m.records, transferRecord{setup: setup})
	handler := m.handler
	m.mu.Unlock()
	if handler == nil {
		return nil, errors.New("no handler installed")
	}
	return handler(setup, nil)
}

func (m *mockTransport) TransferOut(ctx context.Context, setup usb.Setup, data []byte) error {
	buf := append([]byte(nil), data...)
	m.mu.Lock()
	m.records = append(m.records, transferRecord{setup: setup, data: buf})
	handler := m.handler
	m.mu.Unlock()
	if handler == nil {
		return errors.New("no handler installed")
	}
	_, err := handler(setup, buf)
	return err
}

func (m *mockTransport) ClaimInterface(number, alternate int) error { return nil }
func (m *mockTransport) ReleaseInterface(number int) error { return nil }

func (m *mockTransport) SerialNumber() (string, error) {
	return m.serial, nil
}

func (m *mockTransport) VendorID() uint16 { return usb.VendorIon }
func (m *mockTransport) ProductID() uint16 { return 0x6106 }

func (m *mockTransport) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// recorded returns a snapshot of all transfers so far.
func (m *mockTransport) recorded() []transferRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transferRecord, len(m.records))
	copy(out, m.records)
	return out
}

// serviceRecords filters the snapshot down to service frames of one kind.
func (m *mockTransport) serviceRecords(kind protocol.Kind) []transferRecord {
	var out []transferRecord
	for _, rec := range m.recorded() {
		if rec.setup.Request == protocol.BRequestService && rec.setup.Index == uint16(kind) {
			out = append(out, rec)
		}
	}
	return out
}

// simSlot is one allocated protocol slot inside the simulator.
type simSlot struct {
	reqType uint16
	payload []byte
	reply   []byte
	checks  int
}

// ionSim simulates the firmware side of the service protocol. It is driven
// exclusively by the pump goroutine, so no locking is needed.
type ionSim struct {
	nextID uint16
	slots  map[uint16]*simSlot

	// maxSlots answers BUSY to INITs beyond this many live slots; 0 means
	// unlimited
	maxSlots int

	// pendingChecks is the number of PENDING replies each request sees
	// before completing; negative means PENDING forever
	pendingChecks int

	// release, when set, holds every request in PENDING until the channel is
	// closed
	release chan struct{}

	// echo makes the reply payload a copy of the request payload
	echo bool

	// reply is the fixed reply payload when echo is unset
	reply []byte

	// result is the result code reported on completion
	result protocol.Result
}

func newIonSim() *ionSim {
	return &ionSim{nextID: 7, slots: make(map[uint16]*simSlot)}
}

func (s *ionSim) transport() *mockTransport {
	return newMockTransport(s.handle)
}

func (s *ionSim) handle(setup usb.Setup, data []byte) ([]byte, error) {
	switch protocol.Kind(setup.Index) {
	case protocol.KindInit:
		if s.maxSlots > 0 && len(s.slots) >= s.maxSlots {
			return protocol.MarshalReply(&protocol.Reply{Status: protocol.StatusBusy}), nil
		}
		id := s.nextID
		s.nextID++
		s.slots[id] = &simSlot{reqType: setup.Value}
		return protocol.MarshalReply(&protocol.Reply{Status: protocol.StatusOK, ID: id}), nil

	case protocol.KindSend:
		if slot, ok := s.slots[setup.Value]; ok {
			slot.payload = append([]byte(nil), data...)
		}
		return nil, nil

	case protocol.KindCheck:
		slot, ok := s.slots[setup.Value]
		if !ok {
			return protocol.MarshalReply(&protocol.Reply{Status: protocol.StatusNotFound, ID: setup.Value}), nil
		}
		slot.checks++
		if s.pendingChecks < 0 || slot.checks <= s.pendingChecks {
			return protocol.MarshalReply(&protocol.Reply{Status: protocol.StatusPending, ID: setup.Value}), nil
		}
		if s.release != nil {
			select {
			case <-s.release:
			default:
				return protocol.MarshalReply(&protocol.Reply{Status: protocol.StatusPending, ID: setup.Value}), nil
			}
		}
		reply := s.reply
		if s.echo {
			reply = slot.payload
		}
		slot.reply = reply
		if len(reply) == 0 {
			// Terminal check with no reply payload frees the slot.
			delete(s.slots, setup.Value)
		}
		return protocol.MarshalReply(&protocol.Reply{
			Status: protocol.StatusOK,
			ID:     setup.Value,
			Size:   uint32(len(reply)),
			Result: s.result,
		}), nil

	case protocol.KindRecv:
		slot, ok := s.slots[setup.Value]
		if !ok {
			return nil, nil
		}
		reply := slot.reply
		delete(s.slots, setup.Value)
		return reply, nil

	case protocol.KindReset:
		if setup.Value == 0 {
			s.slots = make(map[uint16]*simSlot)
		} else {
			delete(s.slots, setup.Value)
		}
		return nil, nil
	}
	return nil, errors.New("unknown service kind")
}
