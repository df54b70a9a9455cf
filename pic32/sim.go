package pic32

import (
	"fmt"
	"sync"
)

// Target is a device attached to a simulated bus.
type Target interface {
	// Select is called with the 7-bit address and direction after a start or
	// repeated start; returning false NACKs the address byte.
	Select(address byte, read bool) bool
	// Receive takes a data byte from the master and returns whether it is
	// ACKed.
	Receive(b byte) bool
	// Transmit returns the next byte the device drives onto the bus.
	Transmit() byte
	Stop()
}

type EventKind int

const (
	EventStart EventKind = iota
	EventRestart
	EventStop
	EventWrite
	EventRead
	EventAck
	EventNack
)

// Event is one step of the simulated bus trace.
type Event struct {
	Kind EventKind
	Data byte
	Ack  bool
}

func (e Event) String() string {
	switch e.Kind {
	case EventStart:
		return "START"
	case EventRestart:
		return "RESTART"
	case EventStop:
		return "STOP"
	case EventWrite:
		if e.Ack {
			return fmt.Sprintf("W %02x ACK", e.Data)
		}
		return fmt.Sprintf("W %02x NACK", e.Data)
	case EventRead:
		return fmt.Sprintf("R %02x", e.Data)
	case EventAck:
		return "ACK"
	case EventNack:
		return "NACK"
	default:
		return "?"
	}
}

type SimOpts struct {
	// Latency is the number of register reads an operation stays pending.
	Latency int
}

type SimOpt func(*SimOpts)

func WithLatency(cycles int) SimOpt {
	return func(o *SimOpts) {
		o.Latency = cycles
	}
}

type simOp int

const (
	opNone simOp = iota
	opStart
	opRestart
	opStop
	opReceive
	opAcknowledge
	opTransmit
)

// Sim emulates the I2C engine at register level. Pending operations advance
// one step on every Control or Status read, the way polling observes them on
// hardware. Stuck bits can be pinned with Hold.
type Sim struct {
	mx      sync.Mutex
	config  SimOpts
	targets map[byte]Target

	con  uint32
	stat uint32
	brg  uint16
	trn  byte
	rcv  byte

	op        simOp
	countdown int
	held      uint32

	expectAddress bool
	selected      Target
	reading       bool

	events []Event
}

var _ Registers = &Sim{}

func NewSim(opts ...SimOpt) *Sim {
	config := SimOpts{Latency: 2}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Latency < 1 {
		config.Latency = 1
	}
	return &Sim{config: config, targets: make(map[byte]Target)}
}

// Attach connects target at the 7-bit address.
func (s *Sim) Attach(address byte, target Target) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.targets[address] = target
}

// Hold pins the given control bits: once set they are never cleared by the
// simulated hardware.
func (s *Sim) Hold(mask uint32) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.held |= mask
}

// Events lets a pending operation complete and returns a copy of the bus
// trace.
func (s *Sim) Events() []Event {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.settle()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Trace returns the bus trace rendered as strings.
func (s *Sim) Trace() []string {
	events := s.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.String()
	}
	return out
}

// ResetTrace lets a pending operation complete and drops the recorded trace.
func (s *Sim) ResetTrace() {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.settle()
	s.events = nil
}

func (s *Sim) Snapshot() RegisterSnapshot {
	s.mx.Lock()
	defer s.mx.Unlock()
	return RegisterSnapshot{Base: "sim", Control: s.con, Status: s.stat, Baud: s.brg}
}

func (s *Sim) Control() uint32 {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.tick()
	return s.con
}

func (s *Sim) Status() uint32 {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.tick()
	return s.stat
}

func (s *Sim) SetControl(mask uint32) {
	s.mx.Lock()
	defer s.mx.Unlock()
	raised := mask &^ s.con
	s.con |= mask
	if s.con&ConON == 0 {
		return
	}
	switch {
	case raised&ConSEN != 0:
		s.schedule(opStart)
	case raised&ConRSEN != 0:
		s.schedule(opRestart)
	case raised&ConPEN != 0:
		s.schedule(opStop)
	case raised&ConRCEN != 0:
		s.schedule(opReceive)
	case raised&ConACKEN != 0:
		s.schedule(opAcknowledge)
	}
}

func (s *Sim) ClearControl(mask uint32) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.con &^= mask
	if mask&ConON != 0 {
		s.reset()
	}
}

func (s *Sim) WriteControl(value uint32) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.con = value
	if value&ConON == 0 {
		s.reset()
	}
}

func (s *Sim) SetBaudRate(value uint16) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.brg = value
}

func (s *Sim) Transmit(b byte) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.con&ConON == 0 {
		return
	}
	s.trn = b
	s.stat |= StatTBF | StatTRSTAT
	s.schedule(opTransmit)
}

func (s *Sim) Receive() byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.stat &^= StatRBF
	return s.rcv
}

func (s *Sim) reset() {
	s.stat = 0
	s.op = opNone
	s.countdown = 0
	s.expectAddress = false
	s.selected = nil
	s.reading = false
}

func (s *Sim) settle() {
	for s.op != opNone {
		s.tick()
	}
}

func (s *Sim) schedule(op simOp) {
	s.op = op
	s.countdown = s.config.Latency
}

func (s *Sim) tick() {
	if s.op == opNone {
		return
	}
	s.countdown--
	if s.countdown > 0 {
		return
	}
	op := s.op
	s.op = opNone
	switch op {
	case opStart, opRestart:
		s.clear(ConSEN | ConRSEN)
		if op == opStart {
			s.events = append(s.events, Event{Kind: EventStart})
		} else {
			s.events = append(s.events, Event{Kind: EventRestart})
		}
		s.expectAddress = true
		s.selected = nil
	case opStop:
		s.clear(ConPEN)
		s.events = append(s.events, Event{Kind: EventStop})
		if s.selected != nil {
			s.selected.Stop()
		}
		s.selected = nil
		s.expectAddress = false
	case opReceive:
		s.clear(ConRCEN)
		s.rcv = 0xFF
		if s.selected != nil && s.reading {
			s.rcv = s.selected.Transmit()
		}
		s.stat |= StatRBF
		s.events = append(s.events, Event{Kind: EventRead, Data: s.rcv})
	case opAcknowledge:
		s.clear(ConACKEN)
		if s.con&ConACKDT != 0 {
			s.events = append(s.events, Event{Kind: EventNack})
		} else {
			s.events = append(s.events, Event{Kind: EventAck})
		}
	case opTransmit:
		ack := s.shiftOut(s.trn)
		s.stat &^= StatTBF | StatTRSTAT
		if ack {
			s.stat &^= StatACKSTAT
		} else {
			s.stat |= StatACKSTAT
		}
		s.events = append(s.events, Event{Kind: EventWrite, Data: s.trn, Ack: ack})
	}
}

func (s *Sim) shiftOut(b byte) bool {
	if s.expectAddress {
		s.expectAddress = false
		s.reading = b&1 == 1
		target, ok := s.targets[b>>1]
		if !ok || !target.Select(b>>1, s.reading) {
			s.selected = nil
			return false
		}
		s.selected = target
		return true
	}
	if s.selected == nil || s.reading {
		return false
	}
	return s.selected.Receive(b)
}

func (s *Sim) clear(mask uint32) {
	s.con &^= mask &^ s.held
}

// PointerTarget is a device exposing a register file behind a pointer
// register: the first byte written after the address selects the register,
// further writes store data, reads return the selected register and advance
// the pointer.
type PointerTarget struct {
	mx        sync.Mutex
	registers map[byte]byte
	pointer   byte
	pointed   bool
}

func NewPointerTarget(registers map[byte]byte) *PointerTarget {
	regs := make(map[byte]byte, len(registers))
	for k, v := range registers {
		regs[k] = v
	}
	return &PointerTarget{registers: regs}
}

// Set updates a register value.
func (t *PointerTarget) Set(register, value byte) {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.registers[register] = value
}

func (t *PointerTarget) Pointer() byte {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.pointer
}

func (t *PointerTarget) Select(address byte, read bool) bool {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.pointed = false
	return true
}

func (t *PointerTarget) Receive(b byte) bool {
	t.mx.Lock()
	defer t.mx.Unlock()
	if !t.pointed {
		t.pointer = b
		t.pointed = true
		return true
	}
	t.registers[t.pointer] = b
	t.pointer++
	return true
}

func (t *PointerTarget) Transmit() byte {
	t.mx.Lock()
	defer t.mx.Unlock()
	v := t.registers[t.pointer]
	t.pointer++
	return v
}

func (t *PointerTarget) Stop() {}
