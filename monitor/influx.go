package monitor

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

type InfluxConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// InfluxSink writes readings as points tagged with the sensor name.
type InfluxSink struct {
	client      influxdb2.Client
	write       api.WriteAPIBlocking
	measurement string
}

var _ Sink = &InfluxSink{}

func NewInfluxSink(config InfluxConfig) *InfluxSink {
	client := influxdb2.NewClient(config.URL, config.Token)
	return newInfluxSink(client, client.WriteAPIBlocking(config.Org, config.Bucket), config.Measurement)
}

func newInfluxSink(client influxdb2.Client, write api.WriteAPIBlocking, measurement string) *InfluxSink {
	if measurement == "" {
		measurement = "temperature"
	}
	return &InfluxSink{client: client, write: write, measurement: measurement}
}

func (s *InfluxSink) Record(ctx context.Context, r Reading) error {
	p := influxdb2.NewPointWithMeasurement(s.measurement).
		AddTag("sensor", r.Sensor).
		AddField("celsius", r.Celsius).
		SetTime(r.Timestamp)
	if err := s.write.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("could not write point to influx: %w", err)
	}
	return nil
}

func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
