// Package config assembles the ingest pipeline's configuration surface:
// CLI flags override environment variables (INGEST_* prefix, via viper's
// AutomaticEnv) which override the YAML config file which override the
// package defaults, with mapstructure decode hooks for typed fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/bytesize"
	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive/google"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/indexstage/openai"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/maintenance"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/postgres"
)

// Config is the full static configuration for one ingestpipeline process.
//
// Configuration sources, in order of precedence (highest first):
//  1. CLI flags (bound by cmd/ingestpipeline)
//  2. Environment variables, prefixed INGEST_ (e.g. INGEST_STATE_STORE_HOST)
//  3. The YAML config file
//  4. Package defaults
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`

	StateStore  postgres.Config   `mapstructure:"state_store" yaml:"state_store"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store" yaml:"object_store"`
	Drive       google.Config     `mapstructure:"drive" yaml:"drive"`
	Vector      openai.Config     `mapstructure:"vector" yaml:"vector"`

	Sync        SyncConfig        `mapstructure:"sync" yaml:"sync"`
	Extract     ExtractConfig     `mapstructure:"extract" yaml:"extract"`
	Index       IndexConfig       `mapstructure:"index" yaml:"index"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance" yaml:"maintenance"`
}

// SyncConfig configures the Drive enumeration/upload stage.
type SyncConfig struct {
	Workers         int `mapstructure:"workers" yaml:"workers,omitempty"`
	CheckpointEvery int `mapstructure:"checkpoint_every" yaml:"checkpoint_every,omitempty"`

	// MaxFileSize skips drive items whose reported size exceeds it.
	// Accepts human-readable values like "500Mi" or "1Gi"; zero means
	// unlimited.
	MaxFileSize bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size,omitempty"`
}

// LoggingConfig mirrors internal/logger.Config with mapstructure/yaml tags
// for file and environment layering.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

func (c LoggingConfig) toLoggerConfig() logger.Config {
	return logger.Config{Level: strings.ToUpper(c.Level), Format: c.Format, Output: c.Output}
}

// TelemetryConfig mirrors internal/telemetry.Config with mapstructure/yaml
// tags.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

func (c TelemetryConfig) toTelemetryConfig() telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = c.Enabled
	if c.Endpoint != "" {
		cfg.Endpoint = c.Endpoint
	}
	cfg.Insecure = c.Insecure
	if c.SampleRate != 0 {
		cfg.SampleRate = c.SampleRate
	}
	return cfg
}

// ProfilingConfig mirrors internal/telemetry.ProfilingConfig with
// mapstructure/yaml tags.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

func (c ProfilingConfig) toProfilingConfig(serviceName, serviceVersion string) telemetry.ProfilingConfig {
	profileTypes := c.ProfileTypes
	if len(profileTypes) == 0 {
		profileTypes = []string{"cpu", "alloc_objects", "inuse_objects"}
	}
	return telemetry.ProfilingConfig{
		Enabled:        c.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       c.Endpoint,
		ProfileTypes:   profileTypes,
	}
}

// serviceName is reported to both the tracing backend and Pyroscope.
const serviceName = "ingestpipeline"

// TelemetryConfig builds the OpenTelemetry configuration cmd/ingestpipeline
// passes to telemetry.Init, stamping in the binary's version.
func (c *Config) TelemetryConfig(version string) telemetry.Config {
	cfg := c.Telemetry.toTelemetryConfig()
	cfg.ServiceName = serviceName
	cfg.ServiceVersion = version
	return cfg
}

// ProfilingConfig builds the Pyroscope configuration cmd/ingestpipeline
// passes to telemetry.InitProfiling, stamping in the binary's version.
func (c *Config) ProfilingConfig(version string) telemetry.ProfilingConfig {
	return c.Telemetry.Profiling.toProfilingConfig(serviceName, version)
}

// LoggerConfig builds the internal/logger configuration cmd/ingestpipeline
// passes to logger.Init.
func (c *Config) LoggerConfig() logger.Config {
	return c.Logging.toLoggerConfig()
}

// MetricsConfig controls the Prometheus counters exported by the
// orchestrator and each stage. When enabled, cmd/ingestpipeline serves
// them over plain HTTP for the duration of the invocation so a scrape
// can catch a long "full" run in progress.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// ObjectStoreConfig configures the S3-compatible CAS backend. It is kept
// separate from objectstore/s3.Config because that type carries a live
// *s3.Client rather than plain credentials; cmd/ingestpipeline builds the
// client from these fields via s3.NewClientFromConfig before constructing
// the Store.
type ObjectStoreConfig struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Region          string `mapstructure:"region" validate:"required" yaml:"region"`
	Bucket          string `mapstructure:"bucket" validate:"required" yaml:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
	KeyPrefix       string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	MaxRetries        uint          `mapstructure:"max_retries" yaml:"max_retries,omitempty"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff,omitempty"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff" yaml:"max_backoff,omitempty"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier,omitempty"`
}

// ExtractConfig configures the extraction/OCR stage.
type ExtractConfig struct {
	Workers      int           `mapstructure:"workers" yaml:"workers,omitempty"`
	ChunkSize    int           `mapstructure:"chunk_size" yaml:"chunk_size,omitempty"`
	UseProcesses bool          `mapstructure:"use_processes" yaml:"use_processes"`
	OCRTimeout   time.Duration `mapstructure:"ocr_timeout" yaml:"ocr_timeout,omitempty"`
}

// IndexConfig configures the indexing stage.
type IndexConfig struct {
	VectorStoreID string `mapstructure:"vector_store_id" validate:"required" yaml:"vector_store_id"`
	Workers       int    `mapstructure:"workers" yaml:"workers,omitempty"`
}

// MaintenanceConfig configures the stale sweep threshold. Migration and
// stats have no tunables beyond the stores they already read.
type MaintenanceConfig struct {
	MaxStaleAge time.Duration `mapstructure:"max_stale_age" yaml:"max_stale_age,omitempty"`
}

// Load reads configuration from configPath (or the default search path, if
// empty), layers environment variables and defaults over it, and validates
// the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if found {
		if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			byteSizeDecodeHook(),
			durationDecodeHook(),
		))); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration, returning an actionable error (pointing the
// operator at `ingestpipeline init` or --config) when no file is found at
// the default location.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf(
				"no configuration file found at default location: %s\n\n"+
					"create one first, or point at a config explicitly:\n"+
					"  ingestpipeline full --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}
	return Load(configPath)
}

// SaveConfig writes cfg to path in YAML, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	// Go through the mapstructure tags Load reads, so the adapter configs
	// that carry no yaml tags are still written under the keys Load expects.
	var tree map[string]interface{}
	if err := mapstructure.Decode(cfg, &tree); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Logging:     LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		Telemetry:   TelemetryConfig{Endpoint: "localhost:4317", Insecure: true, SampleRate: 1.0},
		Metrics:     MetricsConfig{Addr: ":9090"},
		Sync:        SyncConfig{Workers: 10, CheckpointEvery: 50},
		Extract:     ExtractConfig{Workers: 5, ChunkSize: 100, OCRTimeout: 300 * time.Second},
		Index:       IndexConfig{Workers: 3},
		Maintenance: MaintenanceConfig{MaxStaleAge: maintenance.DefaultStaleThreshold},
	}
}

// applyDefaults fills unset fields with the pipeline's defaults, following
// the "zero value means unset, fill it in" convention.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}

	cfg.StateStore.ApplyDefaults()
	cfg.Drive.ApplyDefaults()

	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 10
	}
	if cfg.Sync.CheckpointEvery == 0 {
		cfg.Sync.CheckpointEvery = 50
	}
	if cfg.Extract.Workers == 0 {
		cfg.Extract.Workers = 5
	}
	if cfg.Extract.ChunkSize == 0 {
		cfg.Extract.ChunkSize = 100
	}
	if cfg.Extract.OCRTimeout == 0 {
		cfg.Extract.OCRTimeout = 300 * time.Second
	}
	if cfg.Index.Workers == 0 {
		cfg.Index.Workers = 3
	}
	if cfg.Maintenance.MaxStaleAge == 0 {
		cfg.Maintenance.MaxStaleAge = maintenance.DefaultStaleThreshold
	}
	if cfg.ObjectStore.MaxRetries == 0 {
		cfg.ObjectStore.MaxRetries = 3
	}
	if cfg.ObjectStore.InitialBackoff == 0 {
		cfg.ObjectStore.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.ObjectStore.MaxBackoff == 0 {
		cfg.ObjectStore.MaxBackoff = 2 * time.Second
	}
	if cfg.ObjectStore.BackoffMultiplier == 0 {
		cfg.ObjectStore.BackoffMultiplier = 2.0
	}
}

var validate = validator.New()

// Validate runs struct-tag validation plus the cross-field/adapter-level
// Validate methods each sub-config already exposes.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if err := cfg.StateStore.Validate(); err != nil {
		return fmt.Errorf("state_store: %w", err)
	}
	if err := cfg.Drive.Validate(); err != nil {
		return fmt.Errorf("drive: %w", err)
	}
	if err := cfg.Vector.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// byteSizeDecodeHook lets config files and environment variables express
// sizes as "1Gi"/"500Mi"/"100MB" instead of raw byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook lets config files and environment variables express
// durations as "30s"/"5m"/"1h" instead of raw nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ingestpipeline")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ingestpipeline")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
