package environment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tmpsense"
	"github.com/mklimuk/tmpsense/pic32"
)

// MockI2CBus is a mock implementation of tmpsense.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newSimulatedTMP461(t *testing.T, offset uint8, high, low byte) (*TMP461, *pic32.Sim) {
	t.Helper()
	sim := pic32.NewSim()
	sim.Attach(byte(tmp461BaseAddress+uint16(offset)), pic32.NewPointerTarget(map[byte]byte{
		tmp461LocalTempHigh: high,
		tmp461LocalTempLow:  low,
	}))
	ctrl, err := pic32.NewController(sim)
	require.NoError(t, err)
	sensor := NewTMP461(ctrl)
	require.NoError(t, sensor.Initialize(context.Background(), offset))
	return sensor, sim
}

func TestTMP461_ConvertTemp(t *testing.T) {
	tests := []struct {
		high, low byte
		expected  float64
	}{
		{0x17, 0x40, 23.25},
		{0x00, 0xF0, 0.9375},
		{25, 0x20, 25.125},
		{0x7F, 0x0F, 127},
		{0xFF, 0xFF, 255.9375},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%02x%02x", test.high, test.low), func(t *testing.T) {
			assert.Equal(t, test.expected, convertTMP461Temperature(test.high, test.low))
		})
	}
}

func TestTMP461_InitializeAddress(t *testing.T) {
	for offset := 0; offset <= 255; offset++ {
		sim := pic32.NewSim()
		ctrl, err := pic32.NewController(sim)
		require.NoError(t, err)
		sensor := NewTMP461(ctrl)
		require.NoError(t, sensor.Initialize(context.Background(), uint8(offset)))
		assert.Equal(t, uint16(offset+72), sensor.Address())
		con := sim.Snapshot().Control
		assert.NotZero(t, con&pic32.ConON, "offset %d: controller not enabled", offset)
		assert.NotZero(t, con&pic32.ConDISSLW, "offset %d: slew rate control still enabled", offset)
	}
}

func TestTMP461_ReadTemperature(t *testing.T) {
	sensor, _ := newSimulatedTMP461(t, 0, 25, 0x20)
	temp, err := sensor.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25.125, temp)

	temp32, err := sensor.GetTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float32(25.125), temp32)
}

func TestTMP461_TransactionSequence(t *testing.T) {
	sensor, sim := newSimulatedTMP461(t, 1, 0x17, 0x40)
	temp, err := sensor.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23.25, temp)
	// slave address 0x49: 0x92 addresses it for writing, 0x93 for reading
	assert.Equal(t, []string{
		"START", "W 92 ACK", "W 00 ACK", "STOP",
		"START", "W 93 ACK", "R 17", "NACK", "STOP",
		"START", "W 92 ACK", "W 15 ACK", "STOP",
		"START", "W 93 ACK", "R 40", "NACK", "STOP",
	}, sim.Trace())
}

func TestTMP461_ConcurrentReads(t *testing.T) {
	sensor, _ := newSimulatedTMP461(t, 0, 0x17, 0x40)
	var wg sync.WaitGroup
	errs := make(chan error, 8*5)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				temp, err := sensor.ReadTemperature(context.Background())
				if err != nil {
					errs <- err
					continue
				}
				if temp != 23.25 {
					errs <- fmt.Errorf("unexpected temperature %f", temp)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestTMP461_MockBusSequence(t *testing.T) {
	bus := new(MockI2CBus)
	sensor := NewTMP461(bus)
	ctx := context.Background()
	require.NoError(t, sensor.Initialize(ctx, 2))

	mock.InOrder(
		bus.On("WriteToAddr", ctx, byte(0x4A), []byte{0x00}).Return(nil).Once(),
		bus.On("ReadFromAddr", ctx, byte(0x4A), mock.Anything).Return([]byte{0x00}, nil).Once(),
		bus.On("WriteToAddr", ctx, byte(0x4A), []byte{0x15}).Return(nil).Once(),
		bus.On("ReadFromAddr", ctx, byte(0x4A), mock.Anything).Return([]byte{0xF0}, nil).Once(),
	)

	temp, err := sensor.ReadTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.9375, temp)
	bus.AssertExpectations(t)
}

func TestTMP461_BusError(t *testing.T) {
	bus := new(MockI2CBus)
	sensor := NewTMP461(bus)
	ctx := context.Background()
	require.NoError(t, sensor.Initialize(ctx, 0))

	bus.On("WriteToAddr", ctx, byte(0x48), []byte{0x00}).Return(tmpsense.ErrBusBusy).Once()

	_, err := sensor.ReadTemperature(ctx)
	assert.ErrorIs(t, err, tmpsense.ErrBusBusy)
	bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestTMP461_ReadTemperatureLatency(t *testing.T) {
	for _, latency := range []int{1, 3, 10, 40} {
		t.Run(fmt.Sprintf("latency %d", latency), func(t *testing.T) {
			sim := pic32.NewSim(pic32.WithLatency(latency))
			sim.Attach(tmp461BaseAddress, pic32.NewPointerTarget(map[byte]byte{
				tmp461LocalTempHigh: 0x17,
				tmp461LocalTempLow:  0x40,
			}))
			ctrl, err := pic32.NewController(sim)
			require.NoError(t, err)
			sensor := NewTMP461(ctrl)
			require.NoError(t, sensor.Initialize(context.Background(), 0))
			temp, err := sensor.ReadTemperature(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 23.25, temp)
		})
	}
}

func TestTMP461_ReadChangingTemperature(t *testing.T) {
	target := pic32.NewPointerTarget(map[byte]byte{
		tmp461LocalTempHigh: 20,
		tmp461LocalTempLow:  0x00,
	})
	sim := pic32.NewSim()
	sim.Attach(tmp461BaseAddress, target)
	ctrl, err := pic32.NewController(sim)
	require.NoError(t, err)
	sensor := NewTMP461(ctrl)
	require.NoError(t, sensor.Initialize(context.Background(), 0))

	temp, err := sensor.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20.0, temp)

	target.Set(tmp461LocalTempHigh, 21)
	target.Set(tmp461LocalTempLow, 0x80)
	temp, err = sensor.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21.5, temp)
	// the read auto-increments past the low byte register
	assert.Equal(t, tmp461LocalTempLow+1, target.Pointer())
}
