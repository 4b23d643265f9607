package record

import (
	"context"
	"fmt"
	"log"
	"time"

	"FlowVane/internal/config"
	"FlowVane/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createDecisionsTable = `
CREATE TABLE IF NOT EXISTS path_decisions (
    Timestamp  DateTime64(3),
    SrcIP      String,
    DstIP      String,
    SrcPort    UInt16,
    DstPort    UInt16,
    Protocol   UInt8,
    SrcLeaf    String,
    DstLeaf    String,
    PathID     Int32,
    Via        String,
    Strategy   String,
    NewFlowlet UInt8
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (SrcLeaf, DstLeaf, Timestamp);
`

const createLinkStatsTable = `
CREATE TABLE IF NOT EXISTS link_stats (
    Timestamp   DateTime64(3),
    Link        String,
    Utilization Float64,
    DropCount   UInt64,
    QueueDepth  Int32,
    Stale       UInt8
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Link, Timestamp);
`

// ClickHouseWriter persists path decisions and link samples to ClickHouse.
type ClickHouseWriter struct {
	conn     driver.Conn
	interval time.Duration
}

// NewClickHouseWriter connects and ensures both tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig, interval time.Duration) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createDecisionsTable, createLinkStatsTable} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn, interval: interval}, nil
}

// GetInterval returns the configured flush interval for this writer.
func (w *ClickHouseWriter) GetInterval() time.Duration {
	return w.interval
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Write dispatches on the payload type.
func (w *ClickHouseWriter) Write(payload interface{}, timestamp string) error {
	switch p := payload.(type) {
	case []*model.PathDecision:
		return w.writeDecisions(p)
	case []model.LinkSample:
		return w.writeSamples(p)
	default:
		return fmt.Errorf("invalid payload type for ClickHouse writer: %T", payload)
	}
}

func (w *ClickHouseWriter) writeDecisions(decisions []*model.PathDecision) error {
	if len(decisions) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO path_decisions")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, d := range decisions {
		err = batch.Append(
			d.Timestamp,
			d.FlowKey.SrcIP,
			d.FlowKey.DstIP,
			d.FlowKey.SrcPort,
			d.FlowKey.DstPort,
			d.FlowKey.Protocol,
			d.Pair.SrcLeaf,
			d.Pair.DstLeaf,
			int32(d.Path),
			d.Via,
			d.Strategy,
			boolToUInt8(d.NewFlowlet),
		)
		if err != nil {
			return fmt.Errorf("failed to append decision to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Printf("Wrote %d decisions to ClickHouse", len(decisions))
	return nil
}

func (w *ClickHouseWriter) writeSamples(samples []model.LinkSample) error {
	if len(samples) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO link_stats")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, s := range samples {
		err = batch.Append(
			s.Timestamp,
			string(s.Link),
			s.Utilization,
			s.DropCount,
			int32(s.QueueDepth),
			boolToUInt8(s.Stale),
		)
		if err != nil {
			return fmt.Errorf("failed to append sample to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
