// Package monitor samples a thermometer periodically and fans readings out
// to sinks (InfluxDB, the live HTTP view).
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/tmpsense/snsctx"
)

// Thermometer is satisfied by environment.TMP461 and its mock.
type Thermometer interface {
	ReadTemperature(ctx context.Context) (float64, error)
}

type Reading struct {
	Sensor    string    `json:"sensor"`
	Celsius   float64   `json:"celsius"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives every successful reading.
type Sink interface {
	Record(ctx context.Context, r Reading) error
}

type SinkFunc func(ctx context.Context, r Reading) error

func (f SinkFunc) Record(ctx context.Context, r Reading) error {
	return f(ctx, r)
}

const (
	DefaultInterval    = 2 * time.Second
	DefaultReadTimeout = time.Second
)

type PollerOpts struct {
	Name     string
	Interval time.Duration
	// ReadTimeout bounds a single ReadTemperature call.
	ReadTimeout time.Duration
}

type PollerOpt func(*PollerOpts)

func WithName(name string) PollerOpt {
	return func(o *PollerOpts) {
		o.Name = name
	}
}

func WithInterval(d time.Duration) PollerOpt {
	return func(o *PollerOpts) {
		o.Interval = d
	}
}

func WithReadTimeout(d time.Duration) PollerOpt {
	return func(o *PollerOpts) {
		o.ReadTimeout = d
	}
}

type Poller struct {
	config PollerOpts
	sensor Thermometer
	sinks  []Sink
	now    func() time.Time

	mx   sync.RWMutex
	last *Reading
}

func NewPoller(sensor Thermometer, sinks []Sink, opts ...PollerOpt) *Poller {
	config := PollerOpts{
		Name:        "tmp461",
		Interval:    DefaultInterval,
		ReadTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Interval <= 0 {
		slog.Warn("non-positive sampling interval, using default", "interval", config.Interval, "default", DefaultInterval)
		config.Interval = DefaultInterval
	}
	return &Poller{config: config, sensor: sensor, sinks: sinks, now: time.Now}
}

// AddSink registers another sink. Sinks added while Run is active see the
// next sample.
func (p *Poller) AddSink(s Sink) {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.sinks = append(p.sinks, s)
}

// Last returns the most recent reading, if any.
func (p *Poller) Last() (Reading, bool) {
	p.mx.RLock()
	defer p.mx.RUnlock()
	if p.last == nil {
		return Reading{}, false
	}
	return *p.last, true
}

// Sample takes one reading and hands it to every sink. Sink failures are
// logged and do not fail the sample.
func (p *Poller) Sample(ctx context.Context) (Reading, error) {
	readCtx := ctx
	if p.config.ReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, p.config.ReadTimeout)
		defer cancel()
	}
	temp, err := p.sensor.ReadTemperature(readCtx)
	if err != nil {
		return Reading{}, fmt.Errorf("could not read %s: %w", p.config.Name, err)
	}
	r := Reading{Sensor: p.config.Name, Celsius: temp, Timestamp: p.now()}
	p.mx.Lock()
	p.last = &r
	sinks := append([]Sink(nil), p.sinks...)
	p.mx.Unlock()
	for _, sink := range sinks {
		if err := sink.Record(ctx, r); err != nil {
			slog.Error("could not record reading", "sensor", r.Sensor, "error", err)
		}
	}
	return r, nil
}

// Run samples every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()
	for {
		r, err := p.Sample(ctx)
		if err != nil {
			slog.Error("sample failed", "error", err)
		} else {
			slog.Debug("temperature sampled", "sensor", r.Sensor, "celsius", r.Celsius, "via", snsctx.Source(ctx))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
