package sink

import (
	"context"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/quillan/bleuwatch/internal/config"
	"github.com/quillan/bleuwatch/internal/types"
)

// Influx writes metric events to an InfluxDB v2 bucket. Points are written
// with the blocking API so emission order is preserved.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

func OpenInflux(cfg config.InfluxConfig) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

func (s *Influx) Emit(events []types.MetricEvent) error {
	points := make([]*write.Point, 0, len(events))
	for _, ev := range events {
		points = append(points, influxdb2.NewPoint(
			ev.Tag,
			map[string]string{"step": strconv.FormatInt(ev.Step, 10)},
			map[string]interface{}{
				"value": ev.Value,
				"step":  ev.Step,
			},
			ev.WallTime,
		))
	}
	if err := s.write.WritePoint(context.Background(), points...); err != nil {
		return fmt.Errorf("write influx points: %w", err)
	}
	return nil
}

// Flush is a no-op: the blocking write API persists on Emit.
func (s *Influx) Flush() error {
	return nil
}

func (s *Influx) Close() error {
	s.client.Close()
	return nil
}
