package tmpsense

import (
	"context"
	"errors"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// ErrBusTimeout is returned when a bounded poll gives up waiting for the
// controller to clear (or set) a status bit.
var ErrBusTimeout = errors.New("bus operation timed out")

// ErrNotAcknowledged is returned when the addressed device did not ACK a byte
// within the allowed poll window.
var ErrNotAcknowledged = errors.New("byte not acknowledged")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// BusInitializer is implemented by transports that have to be (re)configured
// before the first transaction.
type BusInitializer interface {
	Init(ctx context.Context) error
}

type TemperatureSensor interface {
	GetTemperature(ctx context.Context) (float32, error)
}
