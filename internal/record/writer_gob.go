package record

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FlowVane/internal/model"
)

// SummaryData holds the metadata written alongside each decision snapshot.
type SummaryData struct {
	TotalDecisions int            `json:"total_decisions"`
	NewFlowlets    int            `json:"new_flowlets"`
	PerPath        map[string]int `json:"per_path"`
	Timestamp      string         `json:"timestamp"`
}

// GobWriter writes buffered decisions and link samples to timestamped
// directories on disk in gob format, plus a JSON summary for quick
// inspection without decoding.
type GobWriter struct {
	rootPath string
	interval time.Duration
}

// NewGobWriter creates a disk writer rooted at rootPath.
func NewGobWriter(rootPath string, interval time.Duration) model.Writer {
	return &GobWriter{rootPath: rootPath, interval: interval}
}

// GetInterval returns the configured flush interval for this writer.
func (w *GobWriter) GetInterval() time.Duration {
	return w.interval
}

// Write serializes one buffered batch to disk.
func (w *GobWriter) Write(payload interface{}, timestamp string) error {
	switch p := payload.(type) {
	case []*model.PathDecision:
		return w.writeDecisions(p, timestamp)
	case []model.LinkSample:
		return w.writeSamples(p, timestamp)
	default:
		return fmt.Errorf("invalid payload type for GobWriter: %T", payload)
	}
}

func (w *GobWriter) writeDecisions(decisions []*model.PathDecision, timestamp string) error {
	if len(decisions) == 0 {
		return nil
	}
	dir := filepath.Join(w.rootPath, timestamp)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filePath := filepath.Join(dir, "decisions.dat")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(decisions); err != nil {
		return fmt.Errorf("failed to encode decisions to gob for file '%s': %w", filePath, err)
	}

	summary := SummaryData{
		TotalDecisions: len(decisions),
		PerPath:        make(map[string]int),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	for _, d := range decisions {
		summary.PerPath[d.Via]++
		if d.NewFlowlet {
			summary.NewFlowlets++
		}
	}

	summaryPath := filepath.Join(dir, "summary.json")
	summaryFile, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	enc := json.NewEncoder(summaryFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return nil
}

func (w *GobWriter) writeSamples(samples []model.LinkSample, timestamp string) error {
	if len(samples) == 0 {
		return nil
	}
	dir := filepath.Join(w.rootPath, timestamp)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filePath := filepath.Join(dir, "link_stats.dat")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(samples); err != nil {
		return fmt.Errorf("failed to encode samples to gob for file '%s': %w", filePath, err)
	}
	return nil
}
