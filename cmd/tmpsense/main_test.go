package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tmpsense/cmd/tmpsense/console"
	"github.com/mklimuk/tmpsense/monitor"
	"github.com/mklimuk/tmpsense/pic32"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	console.SetOutput(&buf, &buf)
	t.Cleanup(func() { console.SetOutput(os.Stdout, os.Stderr) })
	return &buf
}

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmpsense.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
adapter: sim
offset: 3
controller:
  engine: 2
  bus_speed: 400kHz
  poll_timeout: 50ms
watch:
  interval: 10s
  influx:
    url: http://localhost:8086
    bucket: sensors
`), 0o600))

	conf, err := readConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sim", conf.Adapter)
	assert.Equal(t, uint8(3), conf.Offset)
	assert.Equal(t, 2, conf.Controller.Engine)
	assert.Equal(t, "400kHz", conf.Controller.BusSpeed)
	assert.Equal(t, pic32.DefaultPeripheralClock.String(), conf.Controller.PeripheralClock)
	assert.Equal(t, 50*time.Millisecond, conf.Controller.PollTimeout)
	assert.Equal(t, 10*time.Second, conf.Watch.Interval)
	require.NotNil(t, conf.Watch.Influx)
	assert.Equal(t, "sensors", conf.Watch.Influx.Bucket)

	base, err := conf.Controller.Base()
	require.NoError(t, err)
	assert.Equal(t, pic32.I2C2Base, base)
}

func TestReadConfig_Missing(t *testing.T) {
	conf, err := readConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), conf)
}

func TestControllerOptions(t *testing.T) {
	conf := defaultConfig().Controller
	opts, err := conf.Options()
	require.NoError(t, err)
	ctrl, err := pic32.NewController(pic32.NewSim(), opts...)
	require.NoError(t, err)
	assert.Equal(t, uint16(76), ctrl.BaudRate())
	assert.Equal(t, "I2C4", ctrl.String())

	conf.BaudRate = 0x50
	opts, err = conf.Options()
	require.NoError(t, err)
	ctrl, err = pic32.NewController(pic32.NewSim(), opts...)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x50), ctrl.BaudRate())

	conf.BusSpeed = "fast"
	_, err = conf.Options()
	assert.Error(t, err)

	conf.Engine = 9
	_, err = conf.Base()
	assert.Error(t, err)
}

func TestTemperatureCommand_Sim(t *testing.T) {
	out := captureOutput(t)
	err := newApp().Run([]string{"tmpsense", "--config", "", "temperature", "--adapter", "sim", "--offset", "1"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "0x49")
	assert.Contains(t, out.String(), "25.1250°C")
}

func TestControllerBaudCommand(t *testing.T) {
	out := captureOutput(t)
	err := newApp().Run([]string{"tmpsense", "controller", "baud", "400kHz"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "113")
	// I2CxBRG is a 16-bit register
	assert.Contains(t, out.String(), "0x0071")
}

func TestControllerStatusCommand_Sim(t *testing.T) {
	out := captureOutput(t)
	err := newApp().Run([]string{"tmpsense", "--config", "", "controller", "status", "--adapter", "sim"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ON")
	assert.Contains(t, out.String(), "DISSLW")
}

func TestTemperatureCommand_BaudRegisterRange(t *testing.T) {
	out := captureOutput(t)
	err := newApp().Run([]string{"tmpsense", "--config", "", "temperature", "--adapter", "sim", "--brg", "80"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "25.1250°C")

	err = newApp().Run([]string{"tmpsense", "--config", "", "temperature", "--adapter", "sim", "--brg", "65536"})
	assert.ErrorContains(t, err, "does not fit")
}

func TestWatchFlags_NonPositiveInterval(t *testing.T) {
	conf := defaultConfig().Watch
	app := &cli.App{
		Name: "tmpsense",
		Commands: []*cli.Command{{
			Name:  "watch",
			Flags: []cli.Flag{&cli.DurationFlag{Name: "interval"}},
			Action: func(c *cli.Context) error {
				applyWatchFlags(c, &conf)
				return nil
			},
		}},
	}
	err := app.Run([]string{"tmpsense", "watch", "--interval", "0s"})
	require.NoError(t, err)
	assert.Equal(t, monitor.DefaultInterval, conf.Interval)
}
