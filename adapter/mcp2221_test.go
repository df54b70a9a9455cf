package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestMCP2221_SpeedDivider(t *testing.T) {
	tests := []struct {
		speed    physic.Frequency
		expected byte
	}{
		{100 * physic.KiloHertz, 117},
		{400 * physic.KiloHertz, 27},
		{50 * physic.KiloHertz, 237},
	}
	for _, test := range tests {
		t.Run(test.speed.String(), func(t *testing.T) {
			div, err := speedDivider(test.speed)
			require.NoError(t, err)
			assert.Equal(t, test.expected, div)
		})
	}
	_, err := speedDivider(10 * physic.KiloHertz)
	assert.Error(t, err)
	_, err = speedDivider(0)
	assert.Error(t, err)
}

func TestMCP2221_BufferToStatus(t *testing.T) {
	buf := make([]byte, 64)
	buf[9], buf[10] = 0x02, 0x00
	buf[11], buf[12] = 0x01, 0x00
	buf[13] = 3
	buf[14] = 117
	buf[15] = 0x40
	buf[16], buf[17] = 0x90, 0x00
	buf[25] = 1

	status := bufferToStatus(buf)
	assert.Equal(t, &MCP2221Status{
		I2CDataBufferCounter:   3,
		I2CSpeedDivider:        117,
		I2CTimeout:             0x40,
		CurrentAddress:         "9000",
		LastWriteRequestedSize: 2,
		LastWriteSentSize:      1,
		ReadPending:            1,
	}, status)
}
