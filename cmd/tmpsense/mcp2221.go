package main

import (
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/tmpsense/adapter"
	"github.com/mklimuk/tmpsense/cmd/tmpsense/console"
	"github.com/mklimuk/tmpsense/snsctx"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "query or reset the MCP2221 bridge",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "index",
			Value:   -1,
			Usage:   "bridge index from 'usb detect' when several are connected",
			EnvVars: []string{"TMPSENSE_MCP2221_INDEX"},
		},
	},
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		status, err := a.Status(ctx)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return encodeStatus(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		status, err := a.ReleaseBus(ctx)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return encodeStatus(status)
	},
}

func encodeStatus(status *adapter.MCP2221Status) error {
	enc := yaml.NewEncoder(console.Writer())
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(status); err != nil {
		return console.Fail("encoding error", err)
	}
	return nil
}
