// Package config loads pipeline configuration.
//
// Precedence, lowest first: Default(), a config file (.cue, .yaml/.yml or
// .toml), then PROFILEBUS_* environment variables. A .env file, when
// present, only seeds variables that are not already set.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/profilebus/internal/engine"
	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/protocol"
	"github.com/roach88/profilebus/internal/store"
	"github.com/roach88/profilebus/internal/validator"
)

// DefaultStartHeight is the first block the profile protocol was live at.
const DefaultStartHeight int64 = 676000

// Config is the complete pipeline configuration.
type Config struct {
	Protocol  ProtocolConfig  `json:"protocol" yaml:"protocol" toml:"protocol"`
	Rules     RulesConfig     `json:"rules" yaml:"rules" toml:"rules"`
	Policy    string          `json:"policy" yaml:"policy" toml:"policy" env:"POLICY"`
	Store     StoreConfig     `json:"store" yaml:"store" toml:"store"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics" toml:"metrics"`
	Log       LogConfig       `json:"log" yaml:"log" toml:"log"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry" toml:"telemetry"`
}

// ProtocolConfig identifies candidate transactions.
type ProtocolConfig struct {
	Namespace      string         `json:"namespace" yaml:"namespace" toml:"namespace" env:"NAMESPACE"`
	OutputIndex    int            `json:"output_index" yaml:"output_index" toml:"output_index"`
	NamespaceField int            `json:"namespace_field" yaml:"namespace_field" toml:"namespace_field"`
	Markers        []MarkerConfig `json:"markers" yaml:"markers" toml:"markers"`
	StartHeight    int64          `json:"start_height" yaml:"start_height" toml:"start_height" env:"START_HEIGHT"`
	Version        string         `json:"version" yaml:"version" toml:"version"`
}

// MarkerConfig is one opcode marker of the route.
type MarkerConfig struct {
	Position int    `json:"position" yaml:"position" toml:"position"`
	Opcode   string `json:"opcode" yaml:"opcode" toml:"opcode"`
}

// RulesConfig parameterizes the validator. The namespace comes from
// ProtocolConfig so routing and validation can never disagree.
type RulesConfig struct {
	KeyBytes      int      `json:"key_bytes" yaml:"key_bytes" toml:"key_bytes" env:"KEY_BYTES"`
	MinTimestamp  int64    `json:"min_timestamp" yaml:"min_timestamp" toml:"min_timestamp" env:"MIN_TIMESTAMP"`
	MaxTimestamp  int64    `json:"max_timestamp" yaml:"max_timestamp" toml:"max_timestamp" env:"MAX_TIMESTAMP"`
	MaxNameLength int      `json:"max_name_length" yaml:"max_name_length" toml:"max_name_length" env:"MAX_NAME_LENGTH"`
	URLSchemes    []string `json:"url_schemes" yaml:"url_schemes" toml:"url_schemes" env:"URL_SCHEMES" envSeparator:","`
}

// StoreConfig selects the state store backend.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver" toml:"driver" env:"STORE_DRIVER"`
	Path   string `json:"path" yaml:"path" toml:"path" env:"STORE_PATH"`
	DSN    string `json:"dsn" yaml:"dsn" toml:"dsn" env:"STORE_DSN"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr" env:"METRICS_ADDR"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level" env:"LOG_LEVEL"`
	Format string `json:"format" yaml:"format" toml:"format" env:"LOG_FORMAT"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `json:"endpoint" yaml:"endpoint" toml:"endpoint" env:"OTEL_ENDPOINT"`
	ServiceName string `json:"service_name" yaml:"service_name" toml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// Default returns the production configuration.
func Default() Config {
	route := protocol.DefaultRoute()
	rules := validator.DefaultRules()

	markers := make([]MarkerConfig, len(route.Markers))
	for i, m := range route.Markers {
		markers[i] = MarkerConfig{Position: m.Position, Opcode: m.Opcode}
	}

	return Config{
		Protocol: ProtocolConfig{
			Namespace:      route.Namespace,
			OutputIndex:    route.OutputIndex,
			NamespaceField: route.NamespaceField,
			Markers:        markers,
			StartHeight:    DefaultStartHeight,
			Version:        ir.BusdriverVersion,
		},
		Rules: RulesConfig{
			KeyBytes:      rules.KeyBytes,
			MinTimestamp:  rules.MinTimestamp,
			MaxTimestamp:  rules.MaxTimestamp,
			MaxNameLength: rules.MaxNameLength,
			URLSchemes:    rules.URLSchemes,
		},
		Policy: string(engine.PolicyDrop),
		Store: StoreConfig{
			Driver: store.DriverSQLite,
			Path:   "profilebus.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "profilebus",
		},
	}
}

// Route returns the protocol route described by the configuration.
func (c Config) Route() protocol.Route {
	markers := make([]protocol.Marker, len(c.Protocol.Markers))
	for i, m := range c.Protocol.Markers {
		markers[i] = protocol.Marker{Position: m.Position, Opcode: m.Opcode}
	}
	return protocol.Route{
		OutputIndex:    c.Protocol.OutputIndex,
		Markers:        markers,
		NamespaceField: c.Protocol.NamespaceField,
		Namespace:      c.Protocol.Namespace,
	}
}

// ValidatorRules returns the validator rule set.
func (c Config) ValidatorRules() validator.Rules {
	return validator.Rules{
		Namespace:     c.Protocol.Namespace,
		KeyBytes:      c.Rules.KeyBytes,
		MinTimestamp:  c.Rules.MinTimestamp,
		MaxTimestamp:  c.Rules.MaxTimestamp,
		MaxNameLength: c.Rules.MaxNameLength,
		URLSchemes:    append([]string(nil), c.Rules.URLSchemes...),
	}
}

// RejectPolicy parses the configured policy. Validate has already
// rejected unknown values for a loaded config.
func (c Config) RejectPolicy() engine.RejectPolicy {
	p, err := engine.ParseRejectPolicy(c.Policy)
	if err != nil {
		return engine.PolicyDrop
	}
	return p
}

// StoreOptions returns the backend selection for store.OpenBackend.
func (c Config) StoreOptions() store.Options {
	return store.Options{Driver: c.Store.Driver, Path: c.Store.Path, DSN: c.Store.DSN}
}

// LogLevel parses the configured level.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Validate checks the whole configuration and reports every problem found.
func (c Config) Validate() error {
	var errs []error
	if err := c.Route().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("protocol: %w", err))
	}
	if c.Protocol.StartHeight < 0 {
		errs = append(errs, fmt.Errorf("protocol.start_height must not be negative, got %d", c.Protocol.StartHeight))
	}
	if err := c.ValidatorRules().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rules: %w", err))
	}
	if _, err := engine.ParseRejectPolicy(c.Policy); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}

	switch c.Store.Driver {
	case store.DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for sqlite"))
		}
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
	case store.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be sqlite, postgres or memory", c.Store.Driver))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}
