package i2c

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/tmpsense/environment"
	"github.com/mklimuk/tmpsense/pic32"
)

func TestGenericBus_OverController(t *testing.T) {
	sim := pic32.NewSim()
	sim.Attach(0x48, pic32.NewPointerTarget(map[byte]byte{0x00: 0x17, 0x15: 0x40}))
	ctrl, err := pic32.NewController(sim, pic32.WithName("I2C4"))
	require.NoError(t, err)
	require.NoError(t, ctrl.Init(context.Background()))

	bus := NewBus(ctrl)
	assert.Equal(t, "I2C4", bus.String())

	sensor := environment.NewTMP461(bus)
	require.NoError(t, sensor.Initialize(context.Background(), 0))
	temp, err := sensor.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23.25, temp)

	require.NoError(t, bus.SetSpeed(400*physic.KiloHertz))
	assert.Equal(t, uint16(113), ctrl.BaudRate())
	require.NoError(t, bus.Close())
	assert.Zero(t, sim.Snapshot().Control&pic32.ConON)
}

func TestGenericBus_ReadError(t *testing.T) {
	sim := pic32.NewSim()
	ctrl, err := pic32.NewController(sim, pic32.WithPollTimeout(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, ctrl.Init(context.Background()))

	bus := NewBus(ctrl)
	err = bus.ReadFromAddr(context.Background(), 0x48, make([]byte, 1))
	assert.Error(t, err)
}
