package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tmpsense/cmd/tmpsense/console"
	"github.com/mklimuk/tmpsense/environment"
	"github.com/mklimuk/tmpsense/snsctx"
)

var tempReadCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "read the TMP461 local temperature once",
	Flags:   busFlags(),
	Action: func(c *cli.Context) error {
		conf, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		ctx := snsctx.SetSource(snsctx.SetVerbose(c.Context, c.Bool("verbose")), conf.Adapter)
		sensor, release, err := openSensor(ctx, c, conf)
		if err != nil {
			return err
		}
		defer release()
		temp, err := sensor.ReadTemperature(ctx)
		if err != nil {
			return console.Fail("error getting temperature read", err)
		}
		console.Printf("%s  %s\n", console.PictoThermometer, console.Celsius(temp))
		return nil
	},
}

// openSensor opens the configured bus and initializes a TMP461 on it.
func openSensor(ctx context.Context, c *cli.Context, conf Config) (*environment.TMP461, func(), error) {
	bus, release, err := openBus(c, conf)
	if err != nil {
		return nil, nil, console.Fail("adapter error", err)
	}
	sensor := environment.NewTMP461(bus)
	if err := sensor.Initialize(ctx, conf.Offset); err != nil {
		release()
		return nil, nil, console.Fail("adapter initialization error", err)
	}
	console.PInfof(console.PictoPin, "tmp461 at %s on %s", console.White(fmt.Sprintf("%#x", sensor.Address())), console.White(conf.Adapter))
	return sensor, release, nil
}
