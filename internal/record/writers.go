package record

import (
	"fmt"
	"time"

	"FlowVane/internal/config"
	"FlowVane/internal/model"
)

// BuildWriters instantiates every enabled writer from the configuration.
func BuildWriters(defs []config.WriterDef) ([]model.Writer, error) {
	var writers []model.Writer
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		interval, err := time.ParseDuration(def.SnapshotInterval)
		if err != nil || interval <= 0 {
			return nil, fmt.Errorf("invalid snapshot_interval %q for writer %q", def.SnapshotInterval, def.Type)
		}
		switch def.Type {
		case "clickhouse":
			w, err := NewClickHouseWriter(def.ClickHouse, interval)
			if err != nil {
				return nil, err
			}
			writers = append(writers, w)
		case "gob":
			writers = append(writers, NewGobWriter(def.Gob.RootPath, interval))
		default:
			return nil, fmt.Errorf("unknown writer type %q", def.Type)
		}
	}
	return writers, nil
}
