package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tmpsense/adapter"
	"github.com/mklimuk/tmpsense/cmd/tmpsense/console"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "find usb i2c bridges",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list hid devices",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(console.Writer(), 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
		for _, dev := range hid.Enumerate(0, 0) {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		return w.Flush()
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "list connected MCP2221 bridges with their --index",
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(adapter.VendorID, adapter.ProductID)
		if len(devices) == 0 {
			console.Infof("no %s bridge connected", console.Yellow("MCP2221"))
			return nil
		}
		w := tabwriter.NewWriter(console.Writer(), 12, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "INDEX\tVENDOR\tPRODUCT\tSERIAL\tPATH\n")
		for i, dev := range devices {
			_, _ = fmt.Fprintf(w, "%d\t%#x\t%#x\t%s\t%s\n", i, dev.VendorID, dev.ProductID, dev.Serial, dev.Path)
		}
		return w.Flush()
	},
}
