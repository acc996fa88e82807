// Package config loads queue registry settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

const (
	defaultLogLevel         = "info"
	defaultMetricsNamespace = "taskqueue"
	defaultMetricsAddr      = ":2112"
	defaultPollInterval     = time.Second
)

// Config is the file format.
//
//	log:
//	  level: debug
//	metrics:
//	  enabled: true
//	  addr: ":2112"
//	queues:
//	  - name: worker1
//	  - name: io
//	    lock_os_thread: true
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Queues  []QueueConfig `yaml:"queues"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Namespace    string        `yaml:"namespace"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// QueueConfig describes one named queue.
type QueueConfig struct {
	Name            string `yaml:"name"`
	LockOSThread    bool   `yaml:"lock_os_thread"`
	HistoryCapacity int    `yaml:"history_capacity"`
	// CrashOnPanic restores fatal-to-process task panics for this queue.
	CrashOnPanic bool `yaml:"crash_on_panic"`
}

// Default returns an empty config with defaults applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads, decodes and validates a YAML file. Unknown keys are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates YAML bytes.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaultMetricsNamespace
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = defaultMetricsAddr
	}
	if c.Metrics.PollInterval <= 0 {
		c.Metrics.PollInterval = defaultPollInterval
	}
}

// Validate checks queue names are present and unique.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Queues))
	for i, q := range c.Queues {
		if q.Name == "" {
			return fmt.Errorf("queues[%d]: name is required", i)
		}
		if _, dup := seen[q.Name]; dup {
			return fmt.Errorf("queues[%d]: duplicate queue name %q", i, q.Name)
		}
		if q.HistoryCapacity < 0 {
			return fmt.Errorf("queues[%d]: history_capacity must be >= 0", i)
		}
		seen[q.Name] = struct{}{}
	}
	return nil
}

// QueueNames lists queue names in file order.
func (c *Config) QueueNames() []string {
	names := make([]string, 0, len(c.Queues))
	for _, q := range c.Queues {
		names = append(names, q.Name)
	}
	return names
}
