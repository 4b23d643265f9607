package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the routing engine settings.
type EngineConfig struct {
	Strategy           string `yaml:"strategy"`        // "ecmp" or "adaptive"
	FlowletTimeout     string `yaml:"flowlet_timeout"` // idle gap defining a flowlet boundary
	FlowletGrace       string `yaml:"flowlet_grace"`   // extra idle time before eviction
	SweepInterval      string `yaml:"sweep_interval"`
	NumShards          uint32 `yaml:"num_shards"`
	NumWorkers         int    `yaml:"num_workers"`
	SizeOfEventChannel int    `yaml:"size_of_event_channel"`
}

// WeightsConfig holds the congestion scoring weights.
type WeightsConfig struct {
	Utilization float64 `yaml:"utilization"`
	QueueDepth  float64 `yaml:"queue_depth"`
}

// MonitorConfig holds the link state monitor settings.
type MonitorConfig struct {
	ProbeInterval string        `yaml:"probe_interval"`
	EWMAAlpha     float64       `yaml:"ewma_alpha"`
	StaleAfter    int           `yaml:"stale_after"`  // consecutive misses before a link is stale
	StalePolicy   string        `yaml:"stale_policy"` // "worst" or "skip"
	MaxQueueDepth int           `yaml:"max_queue_depth"`
	Weights       WeightsConfig `yaml:"weights"`
}

// TopologyConfig describes the leaf-spine fabric shape.
type TopologyConfig struct {
	NumSpines        int     `yaml:"num_spines"`
	NumLeaves        int     `yaml:"num_leaves"`
	HostsPerLeaf     int     `yaml:"hosts_per_leaf"`
	LinkCapacityMbps float64 `yaml:"link_capacity_mbps"`
}

// NATSConfig holds the event transport settings.
type NATSConfig struct {
	URL             string `yaml:"url"`
	FlowSubject     string `yaml:"flow_subject"`
	DecisionSubject string `yaml:"decision_subject"`
}

// ClickHouseConfig holds connection details for a ClickHouse writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// GobConfig holds settings for the on-disk gob writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// WriterDef defines a single output writer.
type WriterDef struct {
	Type             string           `yaml:"type"` // "clickhouse" or "gob"
	Enabled          bool             `yaml:"enabled"`
	SnapshotInterval string           `yaml:"snapshot_interval"`
	ClickHouse       ClickHouseConfig `yaml:"clickhouse"`
	Gob              GobConfig        `yaml:"gob"`
}

// APIConfig holds HTTP listen addresses.
type APIConfig struct {
	ListenAddr      string `yaml:"listen_addr"`       // fv-api query server
	DebugListenAddr string `yaml:"debug_listen_addr"` // fv-engine live debug server, empty disables
}

// InstallerConfig selects the control-plane installer.
type InstallerConfig struct {
	Type string `yaml:"type"` // "ovs" or "log"
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Topology  TopologyConfig  `yaml:"topology"`
	NATS      NATSConfig      `yaml:"nats"`
	Installer InstallerConfig `yaml:"installer"`
	Writers   []WriterDef     `yaml:"writers"`
	API       APIConfig       `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.Strategy == "" {
		c.Engine.Strategy = "adaptive"
	}
	if c.Engine.FlowletTimeout == "" {
		c.Engine.FlowletTimeout = "50ms"
	}
	if c.Engine.FlowletGrace == "" {
		c.Engine.FlowletGrace = "100ms"
	}
	if c.Engine.SweepInterval == "" {
		c.Engine.SweepInterval = "1s"
	}
	if c.Engine.NumWorkers <= 0 {
		c.Engine.NumWorkers = 4
	}
	if c.Engine.SizeOfEventChannel <= 0 {
		c.Engine.SizeOfEventChannel = 1024
	}
	if c.Monitor.ProbeInterval == "" {
		c.Monitor.ProbeInterval = "100ms"
	}
	if c.Monitor.EWMAAlpha <= 0 || c.Monitor.EWMAAlpha > 1 {
		c.Monitor.EWMAAlpha = 0.3
	}
	if c.Monitor.StaleAfter <= 0 {
		c.Monitor.StaleAfter = 3
	}
	if c.Monitor.StalePolicy == "" {
		c.Monitor.StalePolicy = "worst"
	}
	if c.Monitor.MaxQueueDepth <= 0 {
		c.Monitor.MaxQueueDepth = 1000
	}
	if c.Monitor.Weights.Utilization == 0 && c.Monitor.Weights.QueueDepth == 0 {
		c.Monitor.Weights = WeightsConfig{Utilization: 1.0, QueueDepth: 0.5}
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.FlowSubject == "" {
		c.NATS.FlowSubject = "flowvane.flows"
	}
	if c.NATS.DecisionSubject == "" {
		c.NATS.DecisionSubject = "flowvane.decisions"
	}
}

// FlowletTimeout parses the configured flowlet timeout.
func (c *Config) FlowletTimeout() (time.Duration, error) {
	return parsePositive("engine.flowlet_timeout", c.Engine.FlowletTimeout)
}

// FlowletGrace parses the configured eviction grace period.
func (c *Config) FlowletGrace() (time.Duration, error) {
	return parsePositive("engine.flowlet_grace", c.Engine.FlowletGrace)
}

// SweepInterval parses the configured flowlet sweep interval.
func (c *Config) SweepInterval() (time.Duration, error) {
	return parsePositive("engine.sweep_interval", c.Engine.SweepInterval)
}

// ProbeInterval parses the configured monitor cycle period.
func (c *Config) ProbeInterval() (time.Duration, error) {
	return parsePositive("monitor.probe_interval", c.Monitor.ProbeInterval)
}

func parsePositive(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", name)
	}
	return d, nil
}
