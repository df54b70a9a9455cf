package pic32

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestBaudRate(t *testing.T) {
	tests := []struct {
		pbclk    physic.Frequency
		fsck     physic.Frequency
		expected uint16
	}{
		{100 * physic.MegaHertz, 564 * physic.KiloHertz, 76},
		{100 * physic.MegaHertz, 400 * physic.KiloHertz, 113},
		{100 * physic.MegaHertz, 100 * physic.KiloHertz, 488},
	}
	for _, test := range tests {
		t.Run(test.fsck.String(), func(t *testing.T) {
			brg, err := BaudRate(test.pbclk, test.fsck)
			require.NoError(t, err)
			assert.Equal(t, test.expected, brg)
		})
	}
}

func TestBaudRate_Unreachable(t *testing.T) {
	_, err := BaudRate(100*physic.MegaHertz, 5*physic.MegaHertz)
	assert.Error(t, err)
	_, err = BaudRate(0, 400*physic.KiloHertz)
	assert.Error(t, err)
	_, err = BaudRate(physic.Hertz, physic.Hertz)
	assert.Error(t, err)
}

func TestBusSpeed_RoundTrip(t *testing.T) {
	brg, err := BaudRate(DefaultPeripheralClock, 400*physic.KiloHertz)
	require.NoError(t, err)
	speed := BusSpeed(DefaultPeripheralClock, brg)
	assert.InDelta(t, float64(400*physic.KiloHertz), float64(speed), float64(2*physic.KiloHertz))
}
