package i2c

import (
	"context"
	"fmt"

	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/tmpsense"
)

var _ tmpsense.I2CBus = &GobotBus{}

// GobotBus routes transfers through a gobot adaptor (e.g. nanopi.NewNeoAdaptor).
// The adaptor must already be connected.
type GobotBus struct {
	connector gobot.Connector
	bus       int
}

// NewGobotBus uses bus number nr, or the adaptor's default bus when nr < 0.
func NewGobotBus(connector gobot.Connector, nr int) *GobotBus {
	if nr < 0 {
		nr = connector.DefaultI2cBus()
	}
	return &GobotBus{connector: connector, bus: nr}
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	conn, err := b.connector.GetI2cConnection(int(address), b.bus)
	if err != nil {
		return fmt.Errorf("could not get i2c connection to %x: %w", address, err)
	}
	n, err := conn.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short read from %x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	conn, err := b.connector.GetI2cConnection(int(address), b.bus)
	if err != nil {
		return fmt.Errorf("could not get i2c connection to %x: %w", address, err)
	}
	n, err := conn.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short write to %x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}
