package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tmpsense/cmd/tmpsense/console"
	"github.com/mklimuk/tmpsense/monitor"
	"github.com/mklimuk/tmpsense/snsctx"
)

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "sample the sensor periodically, optionally serving and storing readings",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "sampling interval",
			EnvVars: []string{"TMPSENSE_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "listen",
			Usage:   "serve the latest reading on this address (e.g. :8080)",
			EnvVars: []string{"TMPSENSE_LISTEN"},
		},
		&cli.StringFlag{Name: "influx-url", EnvVars: []string{"TMPSENSE_INFLUX_URL"}},
		&cli.StringFlag{Name: "influx-token", EnvVars: []string{"TMPSENSE_INFLUX_TOKEN"}},
		&cli.StringFlag{Name: "influx-org", EnvVars: []string{"TMPSENSE_INFLUX_ORG"}},
		&cli.StringFlag{Name: "influx-bucket", EnvVars: []string{"TMPSENSE_INFLUX_BUCKET"}},
	}, busFlags()...),
	Action: func(c *cli.Context) error {
		conf, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		applyWatchFlags(c, &conf.Watch)

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = snsctx.SetSource(snsctx.SetVerbose(ctx, c.Bool("verbose")), conf.Adapter)

		sensor, release, err := openSensor(ctx, c, conf)
		if err != nil {
			return err
		}
		defer release()

		poller := monitor.NewPoller(sensor, nil, monitor.WithInterval(conf.Watch.Interval))
		poller.AddSink(monitor.SinkFunc(func(ctx context.Context, r monitor.Reading) error {
			console.Printf("%s %s  %s\n", r.Timestamp.Format("15:04:05"), console.PictoThermometer, console.Celsius(r.Celsius))
			return nil
		}))
		if conf.Watch.Influx != nil && conf.Watch.Influx.URL != "" {
			influx := monitor.NewInfluxSink(*conf.Watch.Influx)
			defer influx.Close()
			poller.AddSink(influx)
			console.Infof("writing readings to %s", console.White(conf.Watch.Influx.URL))
		}

		serveErr := make(chan error, 1)
		if conf.Watch.Listen != "" {
			srv := monitor.NewServer(poller)
			poller.AddSink(srv)
			console.Infof("serving readings on %s", console.White(conf.Watch.Listen))
			go func() {
				if err := srv.ListenAndServe(ctx, conf.Watch.Listen); err != nil {
					serveErr <- err
					stop()
				}
			}()
		}
		err = poller.Run(ctx)
		select {
		case err := <-serveErr:
			return console.Fail("http server failed", err)
		default:
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return console.Fail("watch failed", err)
		}
		return nil
	},
}

func applyWatchFlags(c *cli.Context, conf *WatchConfig) {
	if c.IsSet("interval") && c.Duration("interval") > 0 {
		conf.Interval = c.Duration("interval")
	}
	if c.IsSet("listen") {
		conf.Listen = c.String("listen")
	}
	if !c.IsSet("influx-url") {
		return
	}
	if conf.Influx == nil {
		conf.Influx = &monitor.InfluxConfig{}
	}
	conf.Influx.URL = c.String("influx-url")
	if c.IsSet("influx-token") {
		conf.Influx.Token = c.String("influx-token")
	}
	if c.IsSet("influx-org") {
		conf.Influx.Org = c.String("influx-org")
	}
	if c.IsSet("influx-bucket") {
		conf.Influx.Bucket = c.String("influx-bucket")
	}
}
