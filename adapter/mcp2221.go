package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/tmpsense"
	"github.com/mklimuk/tmpsense/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// HID report commands
const (
	cmdStatusSetParameters = 0x10
	cmdReadData            = 0x40
	cmdWriteData           = 0x90
	cmdReadDataRequest     = 0x91
)

const (
	paramCancelTransfer = 0x10
	paramSetSpeed       = 0x20
)

// mcp2221Clock is the internal clock the I2C speed divider applies to.
const mcp2221Clock = 12 * physic.MegaHertz

var ErrCommandFailed = errors.New("command failed")

var _ tmpsense.I2CBus = &MCP2221{}
var _ tmpsense.BusInitializer = &MCP2221{}

// MCP2221 is a Microchip USB-to-I2C bridge used as an alternative transport
// when the sensor is wired to a PC instead of the PIC32 board.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	speed        physic.Frequency
	index        int
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"buffer_counter"`
	I2CSpeedDivider        int    `yaml:"speed_divider"`
	I2CTimeout             int    `yaml:"timeout"`
	CurrentAddress         string `yaml:"address"`
	LastWriteRequestedSize uint16 `yaml:"requested_size"`
	LastWriteSentSize      uint16 `yaml:"sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type MCP2221Opt func(*MCP2221)

// WithSpeed sets the I2C clock programmed by Init.
func WithSpeed(f physic.Frequency) MCP2221Opt {
	return func(d *MCP2221) {
		d.speed = f
	}
}

// WithDeviceIndex selects the bridge when more than one is plugged in.
func WithDeviceIndex(i int) MCP2221Opt {
	return func(d *MCP2221) {
		d.index = i
	}
}

func NewMCP2221(opts ...MCP2221Opt) *MCP2221 {
	d := &MCP2221{
		request:      make([]byte, 64),
		response:     make([]byte, 64),
		responseWait: 50 * time.Millisecond,
		speed:        100 * physic.KiloHertz,
		index:        -1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Init cancels any dangling transfer and programs the I2C speed.
func (d *MCP2221) Init(ctx context.Context) error {
	divider, err := speedDivider(d.speed)
	if err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	d.request[2] = paramCancelTransfer
	d.request[3] = paramSetSpeed
	d.request[4] = divider
	if err := d.send(ctx, true); err != nil {
		return fmt.Errorf("mcp2221: set speed failed: %w", err)
	}
	// 0x21 means the speed could not be set because a transfer was in progress
	if d.response[3] == 0x21 {
		return tmpsense.ErrBusBusy
	}
	slog.Debug("mcp2221 initialized", "speed", d.speed, "divider", divider)
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		slog.Debug("mcp2221 busy")
		return tmpsense.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdReadDataRequest
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	d.request[0] = cmdReadData
	resetBuffer(d.response)
	err = d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// Release cancels the current transfer, freeing SDA/SCL if a device hung.
func (d *MCP2221) Release(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	d.request[2] = paramCancelTransfer
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func speedDivider(f physic.Frequency) (byte, error) {
	if f <= 0 {
		return 0, fmt.Errorf("mcp2221: invalid speed %s", f)
	}
	div := int64(mcp2221Clock/f) - 3
	if div < 0 || div > 0xFF {
		return 0, fmt.Errorf("mcp2221: speed %s out of range", f)
	}
	return byte(div), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9-10:  requested I2C transfer length (LE)
		11-12: already transferred number of bytes (LE)
		13:    internal I2C data buffer counter
		14:    current I2C communication speed divider value
		15:    current I2C timeout value
		16-17: I2C address being used
		25:    read pending
	*/
	return &MCP2221Status{
		I2CDataBufferCounter:   int(buffer[13]),
		I2CSpeedDivider:        int(buffer[14]),
		I2CTimeout:             int(buffer[15]),
		ReadPending:            int(buffer[25]),
		CurrentAddress:         hex.EncodeToString(buffer[16:18]),
		LastWriteRequestedSize: binary.LittleEndian.Uint16(buffer[9:11]),
		LastWriteSentSize:      binary.LittleEndian.Uint16(buffer[11:13]),
	}
}

func (d *MCP2221) open() (*hid.Device, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	if d.index < 0 {
		if len(devs) > 1 {
			return nil, fmt.Errorf("ambiguous device identification: %d bridges found", len(devs))
		}
		return devs[0].Open()
	}
	if d.index >= len(devs) {
		return nil, fmt.Errorf("no device with id %d", d.index)
	}
	return devs[d.index].Open()
}

func (d *MCP2221) send(ctx context.Context, response bool) error {
	dev, err := d.open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Debug("could not close hid device", "error", err)
		}
	}()
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending message to adapter", "request", hex.EncodeToString(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	if !response {
		return nil
	}
	timer := time.NewTimer(d.responseWait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		slog.Debug("read message from adapter", "response", hex.EncodeToString(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
