// Package config loads fogsched.yaml.
package config

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/session"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "fogsched.yaml"

// Config is the on-disk configuration of a fogsched run.
type Config struct {
	Algorithm session.Algorithm `yaml:"algorithm"`
	Planning  session.Options   `yaml:"planning"`
	// Scenario is the JSON scenario file to schedule.
	Scenario string `yaml:"scenario"`
	// SendingLatency is given to tasks whose scenario entry has none.
	SendingLatency float64 `yaml:"sending_latency"`
	HistoryDB      string  `yaml:"history_db"`
	LogLevel       string  `yaml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Algorithm:      session.HEFT,
		Planning:       session.DefaultOptions(),
		Scenario:       "scenario.json",
		// Sibling branches need a positive latency to be ordered by OCS.
		SendingLatency: 0.01,
		HistoryDB:      ".fogsched/history.db",
		LogLevel:       "info",
	}
}

// Load reads a YAML config over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(errs.ErrInvalidInput, "parse config %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	err := c.Planning.Validate()
	if c.SendingLatency < 0 {
		err = multierr.Append(err, errs.Invalid("sending latency %v is negative", c.SendingLatency))
	}
	if c.Scenario == "" {
		err = multierr.Append(err, errs.Invalid("scenario path is empty"))
	}
	if _, lerr := log.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, errs.Invalid("log level %q: %v", c.LogLevel, lerr))
	}
	return err
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
