package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/tmpsense"
	"github.com/mklimuk/tmpsense/adapter"
	"github.com/mklimuk/tmpsense/cmd/tmpsense/console"
	"github.com/mklimuk/tmpsense/i2c"
	"github.com/mklimuk/tmpsense/pic32"
)

// simulated sensor registers: 25°C high byte, 0x20 low byte
const (
	simTempHigh = 25
	simTempLow  = 0x20
)

const mcp2221MaxSpeed = 400 * physic.KiloHertz

// busFlags builds a fresh flag set per command.
func busFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Value:   "pic32",
			Usage:   "bus transport: pic32, sim, generic, nanopi or mcp2221",
			EnvVars: []string{"TMPSENSE_ADAPTER"},
		},
		&cli.UintFlag{
			Name:    "offset",
			Usage:   "sensor address offset added to 72",
			EnvVars: []string{"TMPSENSE_OFFSET"},
		},
		&cli.StringFlag{
			Name:    "device",
			Usage:   "i2c device for the generic adapter (empty for the first one found)",
			EnvVars: []string{"TMPSENSE_DEVICE"},
		},
		&cli.IntFlag{
			Name:    "gobot-bus",
			Value:   -1,
			Usage:   "nanopi i2c bus number (-1 for the board default)",
			EnvVars: []string{"TMPSENSE_GOBOT_BUS"},
		},
		&cli.IntFlag{
			Name:    "engine",
			Value:   4,
			Usage:   "pic32 i2c engine (1-5)",
			EnvVars: []string{"TMPSENSE_ENGINE"},
		},
		&cli.StringFlag{
			Name:    "pbclk",
			Value:   pic32.DefaultPeripheralClock.String(),
			Usage:   "pic32 peripheral bus clock",
			EnvVars: []string{"TMPSENSE_PBCLK"},
		},
		&cli.StringFlag{
			Name:    "speed",
			Value:   pic32.DefaultBusSpeed.String(),
			Usage:   "i2c clock",
			EnvVars: []string{"TMPSENSE_SPEED"},
		},
		&cli.UintFlag{
			Name:    "brg",
			Usage:   "raw baud rate register value, overrides --speed",
			EnvVars: []string{"TMPSENSE_BRG"},
		},
		&cli.DurationFlag{
			Name:    "poll-timeout",
			Usage:   "bound on every status poll (0 waits forever)",
			EnvVars: []string{"TMPSENSE_POLL_TIMEOUT"},
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask before mapping controller registers",
		},
	}
}

// openBus builds the transport selected by conf. The returned func releases
// it.
func openBus(c *cli.Context, conf Config) (tmpsense.I2CBus, func(), error) {
	switch conf.Adapter {
	case "pic32":
		regs, err := mapRegisters(c, conf.Controller)
		if err != nil {
			return nil, nil, err
		}
		ctrl, err := newController(regs, conf.Controller)
		if err != nil {
			return nil, nil, err
		}
		return ctrl, closer(ctrl.Close), nil
	case "sim":
		sim := pic32.NewSim()
		// the address byte on the wire keeps the low seven bits
		sim.Attach(byte(72+int(conf.Offset))&0x7F, pic32.NewPointerTarget(map[byte]byte{
			0x00: simTempHigh,
			0x15: simTempLow,
		}))
		ctrl, err := newController(sim, conf.Controller)
		if err != nil {
			return nil, nil, err
		}
		return ctrl, closer(ctrl.Close), nil
	case "generic":
		bus, err := i2c.NewGenericBus(conf.Device)
		if err != nil {
			return nil, nil, err
		}
		return bus, closer(bus.Close), nil
	case "nanopi":
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		nr := -1
		if conf.GobotBus != nil {
			nr = *conf.GobotBus
		}
		return i2c.NewGobotBus(npi, nr), closer(npi.I2cBusAdaptor.Finalize), nil
	case "mcp2221":
		speed, err := parseFrequency(conf.Controller.BusSpeed)
		if err != nil {
			return nil, nil, err
		}
		if speed > mcp2221MaxSpeed {
			slog.Warn("clamping bus speed for mcp2221", "requested", speed, "max", mcp2221MaxSpeed)
			speed = mcp2221MaxSpeed
		}
		return adapter.NewMCP2221(adapter.WithSpeed(speed)), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown adapter %q", conf.Adapter)
}

func newController(regs pic32.Registers, conf ControllerConfig) (*pic32.Controller, error) {
	opts, err := conf.Options()
	if err != nil {
		return nil, err
	}
	return pic32.NewController(regs, opts...)
}

func mapRegisters(c *cli.Context, conf ControllerConfig) (*pic32.MappedRegisters, error) {
	base, err := conf.Base()
	if err != nil {
		return nil, err
	}
	if !c.Bool("yes") {
		ok, err := console.Confirm(fmt.Sprintf("map I2C%d registers at %#x through /dev/mem?", conf.Engine, base))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, console.Exit(1, "%s aborted", console.PictoStop)
		}
	}
	return pic32.MapRegisters(base)
}

func closer(fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			slog.Warn("could not release bus", "error", err)
		}
	}
}

var busesCmd = cli.Command{
	Name:  "buses",
	Usage: "list i2c buses usable with --adapter generic",
	Action: func(c *cli.Context) error {
		names, err := i2c.Buses()
		if err != nil {
			return console.Fail("could not list buses", err)
		}
		if len(names) == 0 {
			console.Infof("no i2c bus found")
			return nil
		}
		for _, name := range names {
			console.PInfof(console.PictoPlug, "%s", console.White(name))
		}
		return nil
	},
}
