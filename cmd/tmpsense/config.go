package main

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/tmpsense/monitor"
	"github.com/mklimuk/tmpsense/pic32"
)

// Config is the optional YAML file. Flags that are set explicitly win over
// the file, the file wins over flag defaults.
type Config struct {
	Adapter    string           `yaml:"adapter"`
	Offset     uint8            `yaml:"offset"`
	Device     string           `yaml:"device"`
	GobotBus   *int             `yaml:"gobot_bus"`
	Controller ControllerConfig `yaml:"controller"`
	Watch      WatchConfig      `yaml:"watch"`
}

type ControllerConfig struct {
	Engine          int           `yaml:"engine"`
	PeripheralClock string        `yaml:"peripheral_clock"`
	BusSpeed        string        `yaml:"bus_speed"`
	BaudRate        uint16        `yaml:"baud_rate"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
}

type WatchConfig struct {
	Interval time.Duration         `yaml:"interval"`
	Listen   string                `yaml:"listen"`
	Influx   *monitor.InfluxConfig `yaml:"influx"`
}

func defaultConfig() Config {
	return Config{
		Adapter: "pic32",
		Controller: ControllerConfig{
			Engine:          4,
			PeripheralClock: pic32.DefaultPeripheralClock.String(),
			BusSpeed:        pic32.DefaultBusSpeed.String(),
		},
		Watch: WatchConfig{Interval: monitor.DefaultInterval},
	}
}

// readConfig loads path over the defaults. A missing file is not an error.
func readConfig(path string) (Config, error) {
	conf := defaultConfig()
	if path == "" {
		return conf, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return conf, nil
	}
	if err != nil {
		return conf, fmt.Errorf("could not open config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := yaml.NewDecoder(f).Decode(&conf); err != nil {
		return conf, fmt.Errorf("could not decode config file %s: %w", path, err)
	}
	return conf, nil
}

// loadConfig reads the config file named by the global flag and applies the
// flags the command line set explicitly.
func loadConfig(c *cli.Context) (Config, error) {
	conf, err := readConfig(c.String("config"))
	if err != nil {
		return conf, err
	}
	if c.IsSet("adapter") {
		conf.Adapter = c.String("adapter")
	}
	if c.IsSet("offset") {
		offset := c.Uint("offset")
		if offset > 0xFF {
			return conf, fmt.Errorf("offset %d does not fit in a byte", offset)
		}
		conf.Offset = uint8(offset)
	}
	if c.IsSet("device") {
		conf.Device = c.String("device")
	}
	if c.IsSet("gobot-bus") {
		nr := c.Int("gobot-bus")
		conf.GobotBus = &nr
	}
	if c.IsSet("engine") {
		conf.Controller.Engine = c.Int("engine")
	}
	if c.IsSet("pbclk") {
		conf.Controller.PeripheralClock = c.String("pbclk")
	}
	if c.IsSet("speed") {
		conf.Controller.BusSpeed = c.String("speed")
	}
	if c.IsSet("brg") {
		brg := c.Uint("brg")
		if brg > math.MaxUint16 {
			return conf, fmt.Errorf("baud rate register value %d does not fit in 16 bits", brg)
		}
		conf.Controller.BaudRate = uint16(brg)
	}
	if c.IsSet("poll-timeout") {
		conf.Controller.PollTimeout = c.Duration("poll-timeout")
	}
	return conf, nil
}

func parseFrequency(s string) (physic.Frequency, error) {
	var f physic.Frequency
	if err := f.Set(s); err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", s, err)
	}
	return f, nil
}

// Options turns the controller section into pic32 options.
func (c ControllerConfig) Options() ([]pic32.Option, error) {
	pbclk, err := parseFrequency(c.PeripheralClock)
	if err != nil {
		return nil, err
	}
	speed, err := parseFrequency(c.BusSpeed)
	if err != nil {
		return nil, err
	}
	opts := []pic32.Option{
		pic32.WithName(fmt.Sprintf("I2C%d", c.Engine)),
		pic32.WithPeripheralClock(pbclk),
		pic32.WithBusSpeed(speed),
		pic32.WithPollTimeout(c.PollTimeout),
	}
	if c.BaudRate != 0 {
		opts = append(opts, pic32.WithBaudRateRegister(c.BaudRate))
	}
	return opts, nil
}

var engineBases = map[int]uint64{
	1: pic32.I2C1Base,
	2: pic32.I2C2Base,
	3: pic32.I2C3Base,
	4: pic32.I2C4Base,
	5: pic32.I2C5Base,
}

func (c ControllerConfig) Base() (uint64, error) {
	base, ok := engineBases[c.Engine]
	if !ok {
		return 0, fmt.Errorf("unknown i2c engine %d", c.Engine)
	}
	return base, nil
}
