package environment

import (
	"context"
	"sync"
)

// TemperatureBehaviorFunc defines the function signature for temperature behavior.
// It returns the temperature in Celsius or an error.
type TemperatureBehaviorFunc func(ctx context.Context) (float64, error)

// MockTemperatureSensor is a mock implementation of TMP461 that uses a behavior function
// to produce results without requiring any bus or hardware.
type MockTemperatureSensor struct {
	mx       sync.Mutex
	behavior TemperatureBehaviorFunc
	address  uint16
}

// NewMockTemperatureSensor creates a new mock temperature sensor with the given behavior function.
// The behavior function is called whenever ReadTemperature or GetTemperature is invoked.
//
// Example usage:
//
//	sensor := NewMockTemperatureSensor(func(ctx context.Context) (float64, error) { return 25.125, nil })
func NewMockTemperatureSensor(behavior TemperatureBehaviorFunc) *MockTemperatureSensor {
	return &MockTemperatureSensor{behavior: behavior, address: tmp461BaseAddress}
}

// Initialize records the address the way TMP461 does; there is no bus to configure.
func (m *MockTemperatureSensor) Initialize(ctx context.Context, offset uint8) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.address = tmp461BaseAddress + uint16(offset)
	return nil
}

func (m *MockTemperatureSensor) Address() uint16 {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.address
}

// ReadTemperature returns the temperature by calling the behavior function.
func (m *MockTemperatureSensor) ReadTemperature(ctx context.Context) (float64, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.behavior(ctx)
}

func (m *MockTemperatureSensor) GetTemperature(ctx context.Context) (float32, error) {
	t, err := m.ReadTemperature(ctx)
	return float32(t), err
}
