package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/tmpsense/cmd/tmpsense/console"
	"github.com/mklimuk/tmpsense/pic32"
)

var controllerCmd = cli.Command{
	Name:    "controller",
	Aliases: []string{"ctrl"},
	Usage:   "inspect the pic32 i2c engine",
	Subcommands: cli.Commands{
		&controllerStatusCmd,
		&controllerBaudCmd,
	},
}

type controllerStatus struct {
	pic32.RegisterSnapshot `yaml:",inline"`
	Bits                   []string `yaml:"flags"`
	BusSpeed               string   `yaml:"bus_speed"`
}

var controllerStatusCmd = cli.Command{
	Name:  "status",
	Usage: "dump I2CxCON, I2CxSTAT and I2CxBRG",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		conf, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		var snap pic32.RegisterSnapshot
		switch conf.Adapter {
		case "pic32":
			regs, err := mapRegisters(c, conf.Controller)
			if err != nil {
				return console.Fail("register mapping failed", err)
			}
			snap = regs.Snapshot()
		case "sim":
			sim := pic32.NewSim()
			ctrl, err := newController(sim, conf.Controller)
			if err != nil {
				return console.Fail("controller error", err)
			}
			if err := ctrl.Init(c.Context); err != nil {
				return console.Fail("controller initialization error", err)
			}
			snap = sim.Snapshot()
		default:
			return console.Exit(1, "adapter %s has no controller registers", console.Yellow(conf.Adapter))
		}
		pbclk, err := parseFrequency(conf.Controller.PeripheralClock)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		status := controllerStatus{
			RegisterSnapshot: snap,
			Bits:             snap.Flags(),
			BusSpeed:         pic32.BusSpeed(pbclk, snap.Baud).String(),
		}
		enc := yaml.NewEncoder(console.Writer())
		defer func() { _ = enc.Close() }()
		if err := enc.Encode(status); err != nil {
			return console.Fail("encoding error", err)
		}
		return nil
	},
}

var controllerBaudCmd = cli.Command{
	Name:      "baud",
	Usage:     "compute I2CxBRG for a bus speed",
	ArgsUsage: "[speed]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "pbclk",
			Value:   pic32.DefaultPeripheralClock.String(),
			EnvVars: []string{"TMPSENSE_PBCLK"},
		},
	},
	Action: func(c *cli.Context) error {
		speedArg := pic32.DefaultBusSpeed.String()
		if c.NArg() > 0 {
			speedArg = c.Args().First()
		}
		pbclk, err := parseFrequency(c.String("pbclk"))
		if err != nil {
			return console.Fail("invalid clock", err)
		}
		speed, err := parseFrequency(speedArg)
		if err != nil {
			return console.Fail("invalid speed", err)
		}
		brg, err := pic32.BaudRate(pbclk, speed)
		if err != nil {
			return console.Fail("speed not reachable", err)
		}
		console.Printf("BRG %s (%s) gives %s\n",
			console.White(brg), console.White(fmt.Sprintf("%#04x", brg)), console.White(pic32.BusSpeed(pbclk, brg)))
		return nil
	},
}
