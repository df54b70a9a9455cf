package i2c

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/tmpsense"
	"github.com/mklimuk/tmpsense/snsctx"
)

var _ tmpsense.I2CBus = &GenericBus{}

// GenericBus exposes any periph.io I2C bus (typically /dev/i2c-N through the
// kernel driver) as a tmpsense.I2CBus.
type GenericBus struct {
	bus i2c.BusCloser
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("periph driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return NewBus(bus), nil
}

// NewBus wraps an already opened periph bus.
func NewBus(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{bus: bus}
}

// Buses lists the I2C buses registered with periph.
func Buses() ([]string, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	var names []string
	for _, ref := range i2creg.All() {
		names = append(names, ref.Name)
	}
	return names, nil
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c read", "bus", b.bus.String(), "addr", fmt.Sprintf("%#02x", address), "data", hex.EncodeToString(buffer))
	}
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c write", "bus", b.bus.String(), "addr", fmt.Sprintf("%#02x", address), "data", hex.EncodeToString(buffer))
	}
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	return b.bus.SetSpeed(f)
}

func (b *GenericBus) String() string {
	return b.bus.String()
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
