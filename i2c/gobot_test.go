package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
)

type fakeConnection struct {
	gobot.Connection
	written []byte
	data    []byte
}

func (c *fakeConnection) Write(b []byte) (int, error) {
	c.written = append(c.written, b...)
	return len(b), nil
}

func (c *fakeConnection) Read(b []byte) (int, error) {
	return copy(b, c.data), nil
}

type fakeConnector struct {
	gobot.Connector
	conns   map[int]*fakeConnection
	busUsed int
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (gobot.Connection, error) {
	f.busUsed = busNr
	conn, ok := f.conns[address]
	if !ok {
		return nil, errors.New("no device")
	}
	return conn, nil
}

func (f *fakeConnector) DefaultI2cBus() int {
	return 2
}

func TestGobotBus_Transfers(t *testing.T) {
	conn := &fakeConnection{data: []byte{0x19}}
	connector := &fakeConnector{conns: map[int]*fakeConnection{0x48: conn}}
	bus := NewGobotBus(connector, -1)
	ctx := context.Background()

	require.NoError(t, bus.WriteToAddr(ctx, 0x48, []byte{0x00}))
	assert.Equal(t, []byte{0x00}, conn.written)
	assert.Equal(t, 2, connector.busUsed)

	buf := make([]byte, 1)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x48, buf))
	assert.Equal(t, byte(0x19), buf[0])

	assert.Error(t, bus.ReadFromAddr(ctx, 0x49, buf))
	assert.Error(t, bus.ReadFromAddr(ctx, 0x48, make([]byte, 2)), "short read")
}
