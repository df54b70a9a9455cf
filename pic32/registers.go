// Package pic32 drives a PIC32MZ-style I2C engine one control bit at a time.
//
// The engine is reached through the Registers capability so the same protocol
// code runs against memory-mapped SFRs (MapRegisters) or the in-process
// simulator (Sim).
//
// Reference: PIC32 Family Reference Manual, Section 24 "Inter-Integrated Circuit".
package pic32

// I2CxCON bits
const (
	ConSEN    uint32 = 1 << 0 // start condition enable
	ConRSEN   uint32 = 1 << 1 // repeated start condition enable
	ConPEN    uint32 = 1 << 2 // stop condition enable
	ConRCEN   uint32 = 1 << 3 // receive enable
	ConACKEN  uint32 = 1 << 4 // acknowledge sequence enable
	ConACKDT  uint32 = 1 << 5 // acknowledge data (1 = NACK)
	ConDISSLW uint32 = 1 << 9 // slew rate control disabled
	ConON     uint32 = 1 << 15

	// conPending groups the bits the hardware clears once the condition has
	// been generated.
	conPending = ConSEN | ConRSEN | ConPEN | ConRCEN | ConACKEN
)

// I2CxSTAT bits
const (
	StatTBF     uint32 = 1 << 0 // transmit buffer full
	StatRBF     uint32 = 1 << 1 // receive buffer full
	StatTRSTAT  uint32 = 1 << 14
	StatACKSTAT uint32 = 1 << 15 // 1 = NACK received
)

// Registers is the bit-field capability of a single I2C engine.
//
// SetControl and ClearControl map onto the SET/CLR shadow registers of the
// PIC32 SFR block, so they only touch the bits present in mask.
type Registers interface {
	Control() uint32
	SetControl(mask uint32)
	ClearControl(mask uint32)
	WriteControl(value uint32)

	Status() uint32

	SetBaudRate(value uint16)
	Transmit(b byte)
	Receive() byte
}
