// Package config loads run configuration from YAML, .env files and
// TRAINLOOP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "TRAINLOOP_"

type RunConfig struct {
	Name        string        `yaml:"name"`
	Episodes    int           `yaml:"episodes"`
	Agent       AgentConfig   `yaml:"agent"`
	Environment EnvConfig     `yaml:"environment"`
	Logging     LogConfig     `yaml:"logging"`
	Replay      ReplayConfig  `yaml:"replay"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Tracing     TracingConfig `yaml:"tracing"`
}

type AgentConfig struct {
	ID                  string      `yaml:"id"`
	MinObservations     int         `yaml:"min_observations"`
	ObservationsPerStep float64     `yaml:"observations_per_step"`
	Actor               ActorConfig `yaml:"actor"`
	Noise               NoiseConfig `yaml:"noise"`
	Clip                bool        `yaml:"clip"`
}

type ActorConfig struct {
	Type     string    `yaml:"type"`
	Model    string    `yaml:"model"`
	Provider string    `yaml:"provider"`
	Seed     uint64    `yaml:"seed"`
	Action   []float64 `yaml:"action"`
}

type NoiseConfig struct {
	Stddev float64 `yaml:"stddev"`
	Seed   uint64  `yaml:"seed"`
}

type EnvConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

type LogConfig struct {
	Level    string        `yaml:"level"`
	Format   string        `yaml:"format"`
	CSVPath  string        `yaml:"csv_path"`
	Interval time.Duration `yaml:"interval"`
}

type ReplayConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type TracingConfig struct {
	Stdout bool `yaml:"stdout"`
}

// Default returns the configuration used when no file is given.
func Default() *RunConfig {
	return &RunConfig{
		Name:     "trainloop",
		Episodes: 10,
		Agent: AgentConfig{
			MinObservations:     0,
			ObservationsPerStep: 1,
			Actor:               ActorConfig{Type: "random"},
		},
		Environment: EnvConfig{Type: "corridor"},
		Logging: LogConfig{
			Level:    "info",
			Format:   "text",
			Interval: time.Second,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// LoadConfig reads path on top of Default, applies environment overrides
// and validates the result.
func LoadConfig(path string) (*RunConfig, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TRAINLOOP_* variables.
func (c *RunConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_FORMAT"); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvPrefix + "ENV"); ok && v != "" {
		c.Environment.Type = v
	}
	if v, ok := lookup(EnvPrefix + "ACTOR"); ok && v != "" {
		c.Agent.Actor.Type = v
	}
	if v, ok := lookup(EnvPrefix + "EPISODES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sEPISODES: %w", EnvPrefix, err)
		}
		c.Episodes = n
	}
	return nil
}

func (c *RunConfig) Validate() error {
	var errs []error
	if c.Agent.MinObservations < 0 {
		errs = append(errs, fmt.Errorf("agent.min_observations must be >= 0, got %d", c.Agent.MinObservations))
	}
	r := c.Agent.ObservationsPerStep
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		errs = append(errs, fmt.Errorf("agent.observations_per_step must be > 0, got %v", r))
	}
	if c.Agent.Noise.Stddev < 0 {
		errs = append(errs, fmt.Errorf("agent.noise.stddev must be >= 0, got %v", c.Agent.Noise.Stddev))
	}
	switch c.Agent.Actor.Type {
	case "random", "constant", "llm":
	default:
		errs = append(errs, fmt.Errorf("agent.actor.type %q is not one of random, constant, llm", c.Agent.Actor.Type))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format))
	}
	switch c.Replay.Backend {
	case "", "memory", "none":
	case "sqlite":
		if c.Replay.Path == "" {
			errs = append(errs, errors.New("replay.path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("replay.backend %q is not one of none, memory, sqlite", c.Replay.Backend))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}
	return errors.Join(errs...)
}

// LoadDotEnv loads the first .env file found among paths. Missing files are
// not an error.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	}
	return nil
}
