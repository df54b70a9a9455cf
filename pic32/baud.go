package pic32

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/physic"
)

// pulseGobblerDelay is the typical Tpgd of the I2C engine input filter.
const pulseGobblerDelay = 104 * time.Nanosecond

const (
	DefaultPeripheralClock = 100 * physic.MegaHertz
	// DefaultBusSpeed is the fast-mode rate the TMP461 board was tuned for.
	DefaultBusSpeed = 564 * physic.KiloHertz
)

// BaudRate computes the I2CxBRG value producing bus speed fsck from the
// peripheral clock pbclk:
//
//	BRG = (1/(2*Fsck) - Tpgd) * PBCLK - 2
func BaudRate(pbclk, fsck physic.Frequency) (uint16, error) {
	if pbclk <= 0 || fsck <= 0 {
		return 0, fmt.Errorf("invalid clock configuration: pbclk=%s fsck=%s", pbclk, fsck)
	}
	pbHz := float64(pbclk) / float64(physic.Hertz)
	sckHz := float64(fsck) / float64(physic.Hertz)
	halfPeriod := 1/(2*sckHz) - pulseGobblerDelay.Seconds()
	brg := math.Round(halfPeriod*pbHz - 2)
	if brg < 2 || brg > math.MaxUint16 {
		return 0, fmt.Errorf("bus speed %s not reachable from %s (BRG=%.0f)", fsck, pbclk, brg)
	}
	return uint16(brg), nil
}

// BusSpeed returns the SCL frequency produced by brg on peripheral clock pbclk.
func BusSpeed(pbclk physic.Frequency, brg uint16) physic.Frequency {
	pbHz := float64(pbclk) / float64(physic.Hertz)
	halfPeriod := (float64(brg)+2)/pbHz + pulseGobblerDelay.Seconds()
	return physic.Frequency(math.Round(1 / (2 * halfPeriod) * float64(physic.Hertz)))
}
