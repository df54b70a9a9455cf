package pic32

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/tmpsense"
	"github.com/mklimuk/tmpsense/snsctx"
)

var _ tmpsense.I2CBus = &Controller{}
var _ tmpsense.BusInitializer = &Controller{}
var _ i2c.BusCloser = &Controller{}

// WriteToAddr runs a single write transaction: start, address with the write
// bit, every byte of buffer (each ACKed) and stop.
func (c *Controller) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c write", "bus", c.config.Name, "addr", fmt.Sprintf("%#02x", address), "data", hex.EncodeToString(buffer))
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	if err := c.Write(ctx, address<<1, true); err != nil {
		return fmt.Errorf("write to %#x failed: address: %w", address, err)
	}
	for _, b := range buffer {
		if err := c.Write(ctx, b, true); err != nil {
			return fmt.Errorf("write to %#x failed: %w", address, err)
		}
	}
	if err := c.Stop(ctx); err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	return nil
}

// ReadFromAddr runs a single read transaction filling buffer. Every byte but
// the last is ACKed; the last one is NACKed so the device releases SDA.
func (c *Controller) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if err := c.Write(ctx, address<<1|1, true); err != nil {
		return fmt.Errorf("bus read from %x failed: address: %w", address, err)
	}
	if err := c.readInto(ctx, buffer); err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if err := c.Stop(ctx); err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c read", "bus", c.config.Name, "addr", fmt.Sprintf("%#02x", address), "data", hex.EncodeToString(buffer))
	}
	return nil
}

// Release is a no-op: the engine never holds the bus between transactions.
func (c *Controller) Release(ctx context.Context) error {
	return nil
}

// Tx implements periph's i2c.Bus. A write followed by a read is joined with a
// repeated start.
func (c *Controller) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("pic32: 10-bit address %#x not supported", addr)
	}
	ctx := context.Background()
	address := byte(addr)
	c.mx.Lock()
	defer c.mx.Unlock()
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("pic32: tx %#x: %w", addr, err)
	}
	if len(w) > 0 || len(r) == 0 {
		if err := c.Write(ctx, address<<1, true); err != nil {
			return fmt.Errorf("pic32: tx %#x: address: %w", addr, err)
		}
		for _, b := range w {
			if err := c.Write(ctx, b, true); err != nil {
				return fmt.Errorf("pic32: tx %#x: %w", addr, err)
			}
		}
		if len(r) > 0 {
			if err := c.Restart(ctx); err != nil {
				return fmt.Errorf("pic32: tx %#x: %w", addr, err)
			}
		}
	}
	if len(r) > 0 {
		if err := c.Write(ctx, address<<1|1, true); err != nil {
			return fmt.Errorf("pic32: tx %#x: address: %w", addr, err)
		}
		if err := c.readInto(ctx, r); err != nil {
			return fmt.Errorf("pic32: tx %#x: %w", addr, err)
		}
	}
	if err := c.Stop(ctx); err != nil {
		return fmt.Errorf("pic32: tx %#x: %w", addr, err)
	}
	return nil
}

// SetSpeed reprograms the baud rate generator. The module is switched off
// while I2CxBRG changes.
func (c *Controller) SetSpeed(f physic.Frequency) error {
	brg, err := BaudRate(c.config.PeripheralClock, f)
	if err != nil {
		return fmt.Errorf("pic32: %w", err)
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	on := c.regs.Control()&ConON != 0
	c.regs.ClearControl(ConON)
	c.regs.SetBaudRate(brg)
	if on {
		c.regs.SetControl(ConON)
	}
	c.brg = brg
	c.config.BusSpeed = f
	return nil
}

// Close turns the engine off.
func (c *Controller) Close() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.regs.ClearControl(ConON)
	return nil
}

func (c *Controller) String() string {
	return c.config.Name
}

func (c *Controller) readInto(ctx context.Context, buffer []byte) error {
	for i := range buffer {
		b, err := c.Read(ctx, i == len(buffer)-1)
		if err != nil {
			return err
		}
		buffer[i] = b
	}
	return nil
}
