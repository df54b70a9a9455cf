package pic32

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/tmpsense"
)

func TestController_WriteToAddr(t *testing.T) {
	c, sim, target := newTestController(t)
	err := c.WriteToAddr(context.Background(), testAddress, []byte{0x15})
	require.NoError(t, err)
	assert.Equal(t, []string{"START", "W 90 ACK", "W 15 ACK", "STOP"}, sim.Trace())
	assert.Equal(t, byte(0x15), target.Pointer())
}

func TestController_ReadFromAddrMultiByte(t *testing.T) {
	c, sim, _ := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.WriteToAddr(ctx, testAddress, []byte{0x00}))
	sim.ResetTrace()

	buf := make([]byte, 2)
	require.NoError(t, c.ReadFromAddr(ctx, testAddress, buf))
	assert.Equal(t, []byte{0x19, 0x20}, buf)
	assert.Equal(t, []string{"START", "W 91 ACK", "R 19", "ACK", "R 20", "NACK", "STOP"}, sim.Trace())
}

func TestController_ReadFromMissingDevice(t *testing.T) {
	c, _, _ := newTestController(t, WithPollTimeout(pollTimeoutForTests))
	err := c.ReadFromAddr(context.Background(), 0x4C, make([]byte, 1))
	assert.ErrorIs(t, err, tmpsense.ErrNotAcknowledged)
}

func TestController_TxRepeatedStart(t *testing.T) {
	c, sim, _ := newTestController(t)
	r := make([]byte, 1)
	require.NoError(t, c.Tx(testAddress, []byte{0x15}, r))
	assert.Equal(t, byte(0x40), r[0])
	assert.Equal(t, []string{
		"START", "W 90 ACK", "W 15 ACK",
		"RESTART", "W 91 ACK", "R 40", "NACK",
		"STOP",
	}, sim.Trace())
}

func TestController_TxReadOnly(t *testing.T) {
	c, sim, _ := newTestController(t)
	r := make([]byte, 1)
	require.NoError(t, c.Tx(testAddress, nil, r))
	assert.Equal(t, []string{"START", "W 91 ACK", "R 19", "NACK", "STOP"}, sim.Trace())
}

func TestController_TxTenBitAddress(t *testing.T) {
	c, _, _ := newTestController(t)
	assert.Error(t, c.Tx(0x2F0, []byte{0x00}, nil))
}

func TestController_SetSpeed(t *testing.T) {
	c, sim, _ := newTestController(t)
	require.NoError(t, c.SetSpeed(100*physic.KiloHertz))
	assert.Equal(t, uint16(488), c.BaudRate())
	snap := sim.Snapshot()
	assert.Equal(t, uint16(488), snap.Baud)
	assert.NotZero(t, snap.Control&ConON)

	assert.Error(t, c.SetSpeed(10*physic.MegaHertz))
	assert.Equal(t, uint16(488), c.BaudRate())
}

func TestController_Close(t *testing.T) {
	c, sim, _ := newTestController(t, WithName("I2C4"))
	assert.Equal(t, "I2C4", c.String())
	require.NoError(t, c.Close())
	assert.Zero(t, sim.Snapshot().Control&ConON)
}
