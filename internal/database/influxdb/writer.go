package influxdb

import (
	"context"
	"fmt"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
	"github.com/farouk15160/evocharger/internal/config"
	"github.com/farouk15160/evocharger/internal/database"
)

// Writer handles writing charger samples to InfluxDB
type Writer struct {
	*database.Batcher
	client      *influxdb3.Client
	measurement string
}

// New creates a new InfluxDB writer
func New(cfg config.Influx, batchSize int) (*Writer, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.Host,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create InfluxDB client: %w", err)
	}

	w := &Writer{client: client, measurement: cfg.Measurement}
	w.Batcher = database.NewBatcher("influxdb", batchSize, 0, w.flush)
	return w, nil
}

// Point builds the line for one sample: the message name and identifier
// are tags, every signal is a float field.
func Point(measurement string, s database.Sample) *influxdb3.Point {
	return influxdb3.NewPoint(measurement, Tags(s), Fields(s), s.Time)
}

func Tags(s database.Sample) map[string]string {
	return map[string]string{
		"message": s.Message,
		"can_id":  s.CANID(),
	}
}

func Fields(s database.Sample) map[string]any {
	fields := make(map[string]any, len(s.Values))
	for k, v := range s.Values {
		fields[k] = v
	}
	return fields
}

func (w *Writer) flush(ctx context.Context, batch []database.Sample) error {
	points := make([]*influxdb3.Point, 0, len(batch))
	for _, s := range batch {
		// a line without fields is rejected by the server
		if len(s.Values) == 0 {
			continue
		}
		points = append(points, Point(w.measurement, s))
	}
	if len(points) == 0 {
		return nil
	}
	if err := w.client.WritePoints(ctx, points); err != nil {
		return fmt.Errorf("failed to write points: %w", err)
	}
	return nil
}

// Close closes the InfluxDB connection
func (w *Writer) Close() error {
	w.Batcher.Close()
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
