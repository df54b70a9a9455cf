package pic32

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/tmpsense"
)

type Options struct {
	Name            string
	PeripheralClock physic.Frequency
	BusSpeed        physic.Frequency
	// BaudRateRegister, when non-zero, is written to I2CxBRG as is instead of
	// the value computed from PeripheralClock and BusSpeed.
	BaudRateRegister uint16
	// PollTimeout bounds every wait on a status bit. Zero spins until the
	// condition holds or the context is done.
	PollTimeout time.Duration
}

type Option func(*Options)

func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

func WithPeripheralClock(f physic.Frequency) Option {
	return func(o *Options) {
		o.PeripheralClock = f
	}
}

func WithBusSpeed(f physic.Frequency) Option {
	return func(o *Options) {
		o.BusSpeed = f
	}
}

func WithBaudRateRegister(brg uint16) Option {
	return func(o *Options) {
		o.BaudRateRegister = brg
	}
}

func WithPollTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.PollTimeout = d
	}
}

// Controller is a polled I2C master built on top of the engine's control bits.
//
// Primitives (Start, Stop, Write, Read...) assume the caller owns the bus;
// the transaction methods (WriteToAddr, ReadFromAddr, Tx) take the controller
// lock for the whole transaction.
type Controller struct {
	mx     sync.Mutex
	regs   Registers
	config Options
	brg    uint16
}

func NewController(regs Registers, opts ...Option) (*Controller, error) {
	config := Options{
		Name:            "pic32-i2c",
		PeripheralClock: DefaultPeripheralClock,
		BusSpeed:        DefaultBusSpeed,
	}
	for _, opt := range opts {
		opt(&config)
	}
	brg := config.BaudRateRegister
	if brg == 0 {
		var err error
		brg, err = BaudRate(config.PeripheralClock, config.BusSpeed)
		if err != nil {
			return nil, fmt.Errorf("pic32: %w", err)
		}
	}
	return &Controller{regs: regs, config: config, brg: brg}, nil
}

// BaudRate returns the value programmed into I2CxBRG by Init.
func (c *Controller) BaudRate() uint16 {
	return c.brg
}

// Init resets the engine, disables slew rate control, programs the baud rate
// generator and turns the module on.
func (c *Controller) Init(ctx context.Context) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.regs.WriteControl(0)
	c.regs.SetControl(ConDISSLW)
	c.regs.SetBaudRate(c.brg)
	c.regs.SetControl(ConON)
	slog.Debug("i2c engine enabled", "name", c.config.Name, "brg", fmt.Sprintf("%#04x", c.brg),
		"speed", BusSpeed(c.config.PeripheralClock, c.brg))
	return nil
}

// Wait blocks until no condition is pending and no byte is in flight.
func (c *Controller) Wait(ctx context.Context) error {
	err := c.poll(ctx, tmpsense.ErrBusTimeout, func() bool {
		return c.regs.Control()&conPending == 0
	})
	if err != nil {
		return fmt.Errorf("waiting for pending conditions: %w", err)
	}
	err = c.poll(ctx, tmpsense.ErrBusTimeout, func() bool {
		return c.regs.Status()&StatTRSTAT == 0
	})
	if err != nil {
		return fmt.Errorf("waiting for transmission end: %w", err)
	}
	return nil
}

func (c *Controller) Start(ctx context.Context) error {
	return c.condition(ctx, ConSEN, "start")
}

func (c *Controller) Restart(ctx context.Context) error {
	return c.condition(ctx, ConRSEN, "repeated start")
}

// Stop requests a stop condition. Unlike Start it does not wait for PEN to
// clear; the next operation's Wait covers it.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	c.regs.SetControl(ConPEN)
	return nil
}

// Write shifts b out. With expectAck it also waits for the device to ACK;
// otherwise the acknowledge status is not looked at.
func (c *Controller) Write(ctx context.Context, b byte, expectAck bool) error {
	c.regs.Transmit(b)
	err := c.poll(ctx, tmpsense.ErrBusTimeout, func() bool {
		return c.regs.Status()&StatTBF == 0
	})
	if err != nil {
		return fmt.Errorf("write %#02x: transmit buffer: %w", b, err)
	}
	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("write %#02x: %w", b, err)
	}
	if !expectAck {
		return nil
	}
	err = c.poll(ctx, tmpsense.ErrNotAcknowledged, func() bool {
		return c.regs.Status()&StatACKSTAT == 0
	})
	if err != nil {
		return fmt.Errorf("write %#02x: %w", b, err)
	}
	return nil
}

// Read clocks one byte in and answers it with ACK, or NACK when wantNack is
// set (last byte of a read).
func (c *Controller) Read(ctx context.Context, wantNack bool) (byte, error) {
	if err := c.Wait(ctx); err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	c.regs.SetControl(ConRCEN)
	err := c.poll(ctx, tmpsense.ErrBusTimeout, func() bool {
		return c.regs.Control()&ConRCEN == 0
	})
	if err != nil {
		return 0, fmt.Errorf("read: receive enable: %w", err)
	}
	err = c.poll(ctx, tmpsense.ErrBusTimeout, func() bool {
		return c.regs.Status()&StatRBF != 0
	})
	if err != nil {
		return 0, fmt.Errorf("read: receive buffer: %w", err)
	}
	value := c.regs.Receive()
	if wantNack {
		err = c.Nack(ctx)
	} else {
		err = c.Ack(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	return value, nil
}

func (c *Controller) Ack(ctx context.Context) error {
	return c.acknowledge(ctx, false)
}

func (c *Controller) Nack(ctx context.Context) error {
	return c.acknowledge(ctx, true)
}

func (c *Controller) acknowledge(ctx context.Context, nack bool) error {
	name := "ack"
	if nack {
		name = "nack"
	}
	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if nack {
		c.regs.SetControl(ConACKDT)
	} else {
		c.regs.ClearControl(ConACKDT)
	}
	c.regs.SetControl(ConACKEN)
	err := c.poll(ctx, tmpsense.ErrBusTimeout, func() bool {
		return c.regs.Control()&ConACKEN == 0
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// condition sets one of the self-clearing condition bits and waits for the
// hardware to clear it.
func (c *Controller) condition(ctx context.Context, bit uint32, name string) error {
	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	c.regs.SetControl(bit)
	err := c.poll(ctx, tmpsense.ErrBusTimeout, func() bool {
		return c.regs.Control()&bit == 0
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *Controller) poll(ctx context.Context, timeoutErr error, done func() bool) error {
	var deadline time.Time
	if c.config.PollTimeout > 0 {
		deadline = time.Now().Add(c.config.PollTimeout)
	}
	for !done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w after %s", timeoutErr, c.config.PollTimeout)
		}
	}
	return nil
}
