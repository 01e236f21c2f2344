package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/garage-alert/internal/channel/push"
	"github.com/oshokin/garage-alert/internal/channel/telemetry"
	"github.com/oshokin/garage-alert/internal/connectivity"
	"github.com/oshokin/garage-alert/internal/domain/alert"
	"github.com/oshokin/garage-alert/internal/logger"
	"github.com/oshokin/garage-alert/internal/repository/snapshot"
)

// Config holds the settings shared by the garage-alert binaries.
type Config struct {
	// ListenAddress is the gRPC address the daemon serves and the CLI dials.
	ListenAddress string `yaml:"listen_addr"`
	// MetricsAddress is the HTTP address for Prometheus metrics; empty disables it.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// Timeout is the duration for RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level,omitempty"`
	// PeriodicInterval is how often the working snapshot is offered to telemetry.
	PeriodicInterval time.Duration `yaml:"periodic_interval"`
	// Push configures the push notification channel.
	Push PushConfig `yaml:"push"`
	// Telemetry configures the telemetry channel.
	Telemetry TelemetryConfig `yaml:"telemetry"`
	// Snapshot configures last-known snapshot persistence.
	Snapshot SnapshotConfig `yaml:"snapshot"`
	// Connectivity configures the connectivity query.
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	// Thresholds configures severity escalation.
	Thresholds ThresholdsConfig `yaml:"thresholds"`
}

// PushConfig holds the push provider settings.
type PushConfig struct {
	APIURL      string        `yaml:"api_url"`
	PrivateKey  string        `yaml:"private_key"`
	Device      string        `yaml:"device"`
	MinInterval time.Duration `yaml:"min_interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// TelemetryConfig holds the telemetry backend settings.
type TelemetryConfig struct {
	BaseURL     string        `yaml:"base_url"`
	ChannelID   string        `yaml:"channel_id"`
	WriteKey    string        `yaml:"write_key"`
	ReadKey     string        `yaml:"read_key,omitempty"`
	MinInterval time.Duration `yaml:"min_interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SnapshotConfig selects where the last snapshot is kept.
type SnapshotConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ConnectivityConfig selects the connectivity query.
type ConnectivityConfig struct {
	Mode string `yaml:"mode"`
}

// ThresholdsConfig holds the escalation thresholds.
type ThresholdsConfig struct {
	TemperatureCritical float64 `yaml:"temperature_critical"`
	SmokeCritical       int     `yaml:"smoke_critical"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "garage-alert-settings.yaml"

	// DefaultSnapshotFilename is the default filename for the snapshot JSON.
	DefaultSnapshotFilename = "garage-alert-snapshot.json"

	// DefaultListenAddress is the default gRPC address.
	DefaultListenAddress = "127.0.0.1:50051"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 10 * time.Second

	// DefaultPeriodicInterval is the default periodic telemetry interval.
	DefaultPeriodicInterval = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeDuration is returned for a negative interval.
	errNegativeDuration = errors.New("duration must not be negative")
	// errInvalidLogLevel is returned for an unknown log level.
	errInvalidLogLevel = errors.New("invalid log level")
	// errInvalidThreshold is returned for a negative threshold.
	errInvalidThreshold = errors.New("threshold must not be negative")
)

// Default returns a configuration with every default filled in and
// placeholder credentials.
func Default() *Config {
	cfg := &Config{
		Push: PushConfig{
			PrivateKey: push.PlaceholderKey,
		},
		Telemetry: TelemetryConfig{
			WriteKey: telemetry.PlaceholderWriteKey,
		},
	}

	// Defaults never fail validation.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes Settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file holds credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults.
// Missing or placeholder credentials are valid: the channel reports
// itself as misconfigured at send time instead.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ListenAddress == "" {
		settings.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if settings.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, settings.LogLevel)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.PeriodicInterval <= 0 {
		settings.PeriodicInterval = DefaultPeriodicInterval
	}

	if err := validatePush(&settings.Push, settings.Timeout); err != nil {
		return err
	}

	if err := validateTelemetry(&settings.Telemetry, settings.Timeout); err != nil {
		return err
	}

	if err := validateSnapshot(&settings.Snapshot); err != nil {
		return err
	}

	if settings.Connectivity.Mode == "" {
		settings.Connectivity.Mode = string(connectivity.ModeInterfaces)
	}

	if _, err := connectivity.FromMode(connectivity.Mode(settings.Connectivity.Mode)); err != nil {
		return fmt.Errorf("invalid connectivity mode: %w", err)
	}

	return validateThresholds(&settings.Thresholds)
}

// AlertThresholds converts the configured thresholds.
func (c *Config) AlertThresholds() alert.Thresholds {
	return alert.Thresholds{
		TemperatureCritical: c.Thresholds.TemperatureCritical,
		SmokeCritical:       c.Thresholds.SmokeCritical,
	}
}

func validatePush(p *PushConfig, timeout time.Duration) error {
	if p.APIURL == "" {
		p.APIURL = push.DefaultAPIURL
	}

	if _, err := url.ParseRequestURI(p.APIURL); err != nil {
		return fmt.Errorf("invalid push API URL: %w", err)
	}

	if p.Device == "" {
		p.Device = push.DefaultDevice
	}

	if p.MinInterval < 0 {
		return fmt.Errorf("push min_interval: %w", errNegativeDuration)
	}

	if p.Timeout <= 0 {
		p.Timeout = timeout
	}

	return nil
}

func validateTelemetry(t *TelemetryConfig, timeout time.Duration) error {
	if t.BaseURL == "" {
		t.BaseURL = telemetry.DefaultBaseURL
	}

	if _, err := url.ParseRequestURI(t.BaseURL); err != nil {
		return fmt.Errorf("invalid telemetry base URL: %w", err)
	}

	switch {
	case t.MinInterval < 0:
		return fmt.Errorf("telemetry min_interval: %w", errNegativeDuration)
	case t.MinInterval == 0:
		t.MinInterval = telemetry.DefaultMinInterval
	}

	if t.Timeout <= 0 {
		t.Timeout = timeout
	}

	return nil
}

func validateSnapshot(s *SnapshotConfig) error {
	backend, err := snapshot.ParseBackend(s.Backend)
	if err != nil {
		return err
	}

	s.Backend = string(backend)

	if s.Path == "" && backend == snapshot.BackendFile {
		s.Path = DefaultSnapshotFilename
	}

	if s.Path == "" && backend == snapshot.BackendSQLite {
		s.Path = "garage-alert-snapshot.db"
	}

	return nil
}

func validateThresholds(t *ThresholdsConfig) error {
	if t.TemperatureCritical < 0 || t.SmokeCritical < 0 {
		return errInvalidThreshold
	}

	defaults := alert.DefaultThresholds()

	if t.TemperatureCritical == 0 {
		t.TemperatureCritical = defaults.TemperatureCritical
	}

	if t.SmokeCritical == 0 {
		t.SmokeCritical = defaults.SmokeCritical
	}

	return nil
}
