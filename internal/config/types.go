package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"offsched/internal/storage"
	logx "offsched/pkg/logx"
)

const DefaultServerlessPath = "./serverless.yml"

// Config is the runner configuration file (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	// Serverless is the path of the serverless.yml that defines the tasks.
	Serverless string `json:"serverless,omitempty"`

	SkipFunctions  []string `json:"skip_functions,omitempty"`
	RunImmediately bool     `json:"run_immediately,omitempty"`

	// Timezone is an IANA TZ used to evaluate schedules, e.g. "Europe/Berlin".
	Timezone string `json:"timezone,omitempty"`

	Invoker InvokerConfig  `json:"invoker"`
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
}

// InvokerConfig selects how a firing runs the task.
//
// Kinds:
//   - "exec" (default): <command> <args...> invoke local --function <name> --data <json> <extra...>
//   - "lambda": Lambda Invoke API of a running serverless-offline
type InvokerConfig struct {
	Kind    string   `json:"kind,omitempty"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Extra   []string `json:"extra,omitempty"`
	Dir     string   `json:"dir,omitempty"`
	Env     []string `json:"env,omitempty"`
	Timeout string   `json:"timeout,omitempty"`

	Endpoint string `json:"endpoint,omitempty"`
	Region   string `json:"region,omitempty"`
	// NamePrefix overrides the "<service>-<stage>-" prefix derived from serverless.yml.
	NamePrefix *string `json:"name_prefix,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	KeepLast    int    `json:"keep_last,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Serverless: DefaultServerlessPath,
		Invoker:    InvokerConfig{Kind: "exec"},
		Logging:    LoggingConfig{Level: "info", Console: true},
	}
}

// ApplyDefaults fills omitted fields.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Serverless) == "" {
		c.Serverless = DefaultServerlessPath
	}
	if strings.TrimSpace(c.Invoker.Kind) == "" {
		c.Invoker.Kind = "exec"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if !c.Logging.Console && !c.Logging.File.Enabled {
		c.Logging.Console = true
	}
}

// Validate checks the fields the runner cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.Invoker.Kind)) {
	case "", "exec", "lambda":
	default:
		errs = append(errs, fmt.Errorf("invoker.kind: unknown kind %q (use exec or lambda)", c.Invoker.Kind))
	}
	if _, err := logx.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if _, err := ParseDurationField("invoker.timeout", c.Invoker.Timeout); err != nil {
		errs = append(errs, err)
	}
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("timezone: %w", err))
		}
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Location returns the configured timezone, or time.Local.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

// LogConfig maps the logging section onto logx.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}

// StorageConfig maps the storage section onto storage.Config.
func (c *Config) StorageConfig() (storage.Config, error) {
	if c.Storage == nil {
		return storage.Config{}, nil
	}
	bt, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: bt,
		KeepLast:    c.Storage.KeepLast,
	}, nil
}
