package pic32

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/host/v3/pmem"
)

// Physical base addresses of the I2C engines on PIC32MZ EF parts.
const (
	I2C1Base uint64 = 0x1F820000
	I2C2Base uint64 = 0x1F820200
	I2C3Base uint64 = 0x1F820400
	I2C4Base uint64 = 0x1F820600
	I2C5Base uint64 = 0x1F820800
)

// sfr is a PIC32 special function register with its CLR, SET and INV
// shadows.
type sfr struct {
	Reg uint32
	Clr uint32
	Set uint32
	Inv uint32
}

// i2cMap mirrors the I2Cx register block layout.
type i2cMap struct {
	Con  sfr // 0x00
	Stat sfr // 0x10
	Add  sfr // 0x20
	Msk  sfr // 0x30
	Brg  sfr // 0x40
	Trn  sfr // 0x50
	Rcv  sfr // 0x60
}

// MappedRegisters accesses a live I2C engine through /dev/mem.
type MappedRegisters struct {
	base uint64
	m    *i2cMap
}

var _ Registers = &MappedRegisters{}

// MapRegisters maps the I2C register block at physical address base.
// Requires root (or CAP_SYS_RAWIO).
func MapRegisters(base uint64) (*MappedRegisters, error) {
	r := &MappedRegisters{base: base}
	if err := pmem.MapAsPOD(base, &r.m); err != nil {
		return nil, fmt.Errorf("could not map i2c registers at %#x: %w", base, err)
	}
	return r, nil
}

func (r *MappedRegisters) Control() uint32 {
	return atomic.LoadUint32(&r.m.Con.Reg)
}

func (r *MappedRegisters) SetControl(mask uint32) {
	atomic.StoreUint32(&r.m.Con.Set, mask)
}

func (r *MappedRegisters) ClearControl(mask uint32) {
	atomic.StoreUint32(&r.m.Con.Clr, mask)
}

func (r *MappedRegisters) WriteControl(value uint32) {
	atomic.StoreUint32(&r.m.Con.Reg, value)
}

func (r *MappedRegisters) Status() uint32 {
	return atomic.LoadUint32(&r.m.Stat.Reg)
}

func (r *MappedRegisters) SetBaudRate(value uint16) {
	atomic.StoreUint32(&r.m.Brg.Reg, uint32(value))
}

func (r *MappedRegisters) Transmit(b byte) {
	atomic.StoreUint32(&r.m.Trn.Reg, uint32(b))
}

func (r *MappedRegisters) Receive() byte {
	return byte(atomic.LoadUint32(&r.m.Rcv.Reg))
}

// Snapshot returns raw register values for diagnostics.
func (r *MappedRegisters) Snapshot() RegisterSnapshot {
	return RegisterSnapshot{
		Base:    fmt.Sprintf("%#08x", r.base),
		Control: atomic.LoadUint32(&r.m.Con.Reg),
		Status:  atomic.LoadUint32(&r.m.Stat.Reg),
		Baud:    uint16(atomic.LoadUint32(&r.m.Brg.Reg)),
	}
}

// RegisterSnapshot is a point-in-time dump of the engine registers.
type RegisterSnapshot struct {
	Base    string `yaml:"base"`
	Control uint32 `yaml:"con"`
	Status  uint32 `yaml:"stat"`
	Baud    uint16 `yaml:"brg"`
}

// Flags decodes the set bits of the snapshot by name.
func (s RegisterSnapshot) Flags() []string {
	var flags []string
	for _, f := range []struct {
		name string
		reg  uint32
		bit  uint32
	}{
		{"ON", s.Control, ConON},
		{"DISSLW", s.Control, ConDISSLW},
		{"ACKDT", s.Control, ConACKDT},
		{"ACKEN", s.Control, ConACKEN},
		{"RCEN", s.Control, ConRCEN},
		{"PEN", s.Control, ConPEN},
		{"RSEN", s.Control, ConRSEN},
		{"SEN", s.Control, ConSEN},
		{"ACKSTAT", s.Status, StatACKSTAT},
		{"TRSTAT", s.Status, StatTRSTAT},
		{"RBF", s.Status, StatRBF},
		{"TBF", s.Status, StatTBF},
	} {
		if f.reg&f.bit != 0 {
			flags = append(flags, f.name)
		}
	}
	return flags
}
