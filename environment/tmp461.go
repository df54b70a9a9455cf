package environment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/tmpsense"
)

// TMP461 addresses start at 0x48; the offset selects the strapping variant.
const tmp461BaseAddress = 72

const (
	tmp461LocalTempHigh byte = 0x00
	tmp461LocalTempLow  byte = 0x15
)

// tmp461FractionStep is the weight of one unit of the low byte's top nibble.
const tmp461FractionStep = 0.0625

// TMP461 represents a Texas Instruments TMP461 temperature sensor.
// See: https://www.ti.com/lit/ds/symlink/tmp461.pdf
//
// Usage: instantiate with NewTMP461, call Initialize once, then ReadTemperature(ctx).
// Both calls are serialised so a single instance can be shared.
type TMP461 struct {
	mx        sync.Mutex
	transport tmpsense.I2CBus
	address   uint16
	lastTemp  float64
}

var _ tmpsense.TemperatureSensor = &TMP461{}

func NewTMP461(trans tmpsense.I2CBus) *TMP461 {
	return &TMP461{transport: trans, address: tmp461BaseAddress}
}

// Initialize stores the slave address (72 + offset) and configures the bus
// controller when the transport needs it.
func (sensor *TMP461) Initialize(ctx context.Context, offset uint8) error {
	sensor.mx.Lock()
	defer sensor.mx.Unlock()
	sensor.address = tmp461BaseAddress + uint16(offset)
	if sensor.address > 0x7F {
		slog.Warn("tmp461: address outside of the 7-bit range", "address", sensor.address, "offset", offset)
	}
	if initializer, ok := sensor.transport.(tmpsense.BusInitializer); ok {
		if err := initializer.Init(ctx); err != nil {
			return fmt.Errorf("tmp461: could not initialize bus: %w", err)
		}
	}
	return nil
}

// Address returns the configured slave address.
func (sensor *TMP461) Address() uint16 {
	sensor.mx.Lock()
	defer sensor.mx.Unlock()
	return sensor.address
}

// ReadTemperature reads the local temperature in Celsius. The integer and
// fractional parts are fetched with two separate pointer-write/read pairs.
func (sensor *TMP461) ReadTemperature(ctx context.Context) (float64, error) {
	sensor.mx.Lock()
	defer sensor.mx.Unlock()
	high, err := sensor.readRegister(ctx, tmp461LocalTempHigh)
	if err != nil {
		return 0, fmt.Errorf("tmp461: could not read temperature high byte: %w", err)
	}
	low, err := sensor.readRegister(ctx, tmp461LocalTempLow)
	if err != nil {
		return 0, fmt.Errorf("tmp461: could not read temperature low byte: %w", err)
	}
	sensor.lastTemp = convertTMP461Temperature(high, low)
	return sensor.lastTemp, nil
}

// GetTemperature is ReadTemperature narrowed to float32.
func (sensor *TMP461) GetTemperature(ctx context.Context) (float32, error) {
	temp, err := sensor.ReadTemperature(ctx)
	return float32(temp), err
}

func (sensor *TMP461) readRegister(ctx context.Context, pointer byte) (byte, error) {
	// addresses past 0xFF wrap around in the 8-bit address byte
	address := byte(sensor.address)
	err := sensor.transport.WriteToAddr(ctx, address, []byte{pointer})
	if err != nil {
		return 0, fmt.Errorf("could not write pointer %#02x: %w", pointer, err)
	}
	resp := make([]byte, 1)
	err = sensor.transport.ReadFromAddr(ctx, address, resp)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#02x: %w", pointer, err)
	}
	return resp[0], nil
}

func convertTMP461Temperature(high, low byte) float64 {
	return float64(high) + float64(low>>4)*tmp461FractionStep
}
