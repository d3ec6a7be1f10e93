package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/farouk15160/evocharger/internal/config"
	"github.com/farouk15160/evocharger/internal/database"
)

// Writer handles writing charger signals to ClickHouse, one row per signal
type Writer struct {
	*database.Batcher
	conn  driver.Conn
	table string
}

// New connects, creates the table if needed and returns an unstarted writer.
func New(cfg config.ClickHouse, batchSize int) (*Writer, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, CreateTableQuery(cfg.Table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	w := &Writer{conn: conn, table: cfg.Table}
	w.Batcher = database.NewBatcher("clickhouse", batchSize, 0, w.flush)
	return w, nil
}

// CreateTableQuery returns the DDL of the signal table.
func CreateTableQuery(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime64(3),
			can_id UInt32,
			message LowCardinality(String),
			signal LowCardinality(String),
			value Float64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMMDD(timestamp)
		ORDER BY (message, signal, timestamp)
		TTL toDateTime(timestamp) + INTERVAL 3 MONTH
	`, table)
}

// Row is one signal value as stored in the table.
type Row struct {
	Time    time.Time
	CANID   uint32
	Message string
	Signal  string
	Value   float64
}

// Rows flattens a sample, signals in name order.
func Rows(s database.Sample) []Row {
	names := make([]string, 0, len(s.Values))
	for name := range s.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]Row, 0, len(names))
	for _, name := range names {
		rows = append(rows, Row{
			Time:    s.Time,
			CANID:   s.ID,
			Message: s.Message,
			Signal:  name,
			Value:   s.Values[name],
		})
	}
	return rows
}

func (w *Writer) flush(ctx context.Context, samples []database.Sample) error {
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", w.table))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, s := range samples {
		for _, r := range Rows(s) {
			if err := batch.Append(r.Time, r.CANID, r.Message, r.Signal, r.Value); err != nil {
				batch.Abort()
				return fmt.Errorf("failed to append to batch: %w", err)
			}
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close closes the ClickHouse connection
func (w *Writer) Close() error {
	w.Batcher.Close()
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}
