package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Trajectory  TrajectoryConfig  `mapstructure:"trajectory"`
	Simulator   SimulatorConfig   `mapstructure:"simulator"`
	Transmitter TransmitterConfig `mapstructure:"transmitter"`
	Temporal    TemporalConfig    `mapstructure:"temporal"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DatabaseConfig is optional: an empty host disables trajectory history.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns       int `mapstructure:"max_conns"`
	ConnectTimeout int `mapstructure:"connect_timeout"` // seconds
}

func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

// CacheConfig sizes the in-process fallback cache used when Valkey is unavailable.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
	LocalSize  int `mapstructure:"local_size"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"` // optional rotating log file
}

// TrajectoryConfig controls sampling and the persisted artifact.
type TrajectoryConfig struct {
	ArtifactDir     string  `mapstructure:"artifact_dir"`
	ArtifactName    string  `mapstructure:"artifact_name"`
	DefaultSpeed    float64 `mapstructure:"default_speed"`
	DefaultInterval float64 `mapstructure:"default_interval"`
	Altitude        float64 `mapstructure:"altitude"`
	MaxSamples      int     `mapstructure:"max_samples"`
}

// SimulatorConfig describes the gps-sdr-sim invocation.
type SimulatorConfig struct {
	Path      string `mapstructure:"path"`
	Ephemeris string `mapstructure:"ephemeris"`
	Bits      int    `mapstructure:"bits"`
	Output    string `mapstructure:"output"`
	Timeout   int    `mapstructure:"timeout"`
	// AutoGenerate makes the simulation worker start a generator run for
	// every computed trajectory it sees on NATS.
	AutoGenerate bool `mapstructure:"auto_generate"`
}

// TransmitterConfig describes the hackrf_transfer invocation.
type TransmitterConfig struct {
	Path       string `mapstructure:"path"`
	Frequency  int64  `mapstructure:"frequency"`
	SampleRate int64  `mapstructure:"sample_rate"`
	Amp        int    `mapstructure:"amp"`
	TxGain     int    `mapstructure:"tx_gain"`
	Timeout    int    `mapstructure:"timeout"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// ArchiveConfig enables uploading artifacts to S3-compatible storage.
type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Prefix   string `mapstructure:"prefix"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GPSPATH_SIMULATOR_PATH → simulator.path
	v.SetEnvPrefix("GPSPATH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 900) // synchronous simulations hold the response
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gpspath")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "gpspath")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.connect_timeout", 5)
	v.SetDefault("nats.url", "")
	v.SetDefault("valkey.addr", "")
	v.SetDefault("cache.ttl_seconds", 600)
	v.SetDefault("cache.local_size", 256)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("trajectory.artifact_dir", ".")
	v.SetDefault("trajectory.artifact_name", "coordinates_data.csv")
	v.SetDefault("trajectory.default_speed", 180.0)
	v.SetDefault("trajectory.default_interval", 1.0)
	v.SetDefault("trajectory.altitude", 100.0)
	v.SetDefault("trajectory.max_samples", 500000)
	v.SetDefault("simulator.path", "gps-sdr-sim")
	v.SetDefault("simulator.ephemeris", "brdc1470.24n")
	v.SetDefault("simulator.bits", 8)
	v.SetDefault("simulator.output", "gpssim.bin")
	v.SetDefault("simulator.timeout", 600)
	v.SetDefault("simulator.auto_generate", false)
	v.SetDefault("transmitter.path", "hackrf_transfer")
	v.SetDefault("transmitter.frequency", 1575420000)
	v.SetDefault("transmitter.sample_rate", 2600000)
	v.SetDefault("transmitter.amp", 1)
	v.SetDefault("transmitter.tx_gain", 0)
	v.SetDefault("transmitter.timeout", 3600)
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "gpspath-simulation")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.prefix", "trajectories/")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Enabled() {
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.Cache.TTLSeconds <= 0 {
		errs = append(errs, "cache.ttl_seconds must be positive")
	}
	if c.Cache.LocalSize <= 0 {
		errs = append(errs, "cache.local_size must be positive")
	}
	if c.Trajectory.ArtifactName == "" {
		errs = append(errs, "trajectory.artifact_name is required")
	}
	if c.Trajectory.DefaultSpeed <= 0 {
		errs = append(errs, "trajectory.default_speed must be positive")
	}
	if c.Trajectory.DefaultInterval <= 0 {
		errs = append(errs, "trajectory.default_interval must be positive")
	}
	if c.Trajectory.MaxSamples <= 1 {
		errs = append(errs, "trajectory.max_samples must be greater than 1")
	}
	if c.Simulator.Path == "" {
		errs = append(errs, "simulator.path is required")
	}
	if c.Simulator.Bits != 1 && c.Simulator.Bits != 8 && c.Simulator.Bits != 16 {
		errs = append(errs, fmt.Sprintf("simulator.bits must be 1, 8 or 16, got %d", c.Simulator.Bits))
	}
	if c.Simulator.Timeout <= 0 {
		errs = append(errs, "simulator.timeout must be positive")
	}
	if c.Transmitter.Path == "" {
		errs = append(errs, "transmitter.path is required")
	}
	if c.Transmitter.Frequency <= 0 || c.Transmitter.SampleRate <= 0 {
		errs = append(errs, "transmitter.frequency and transmitter.sample_rate must be positive")
	}
	if c.Transmitter.Timeout <= 0 {
		errs = append(errs, "transmitter.timeout must be positive")
	}
	if c.Temporal.Enabled && (c.Temporal.HostPort == "" || c.Temporal.TaskQueue == "") {
		errs = append(errs, "temporal.host_port and temporal.task_queue are required when temporal is enabled")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		errs = append(errs, "archive.bucket is required when archive is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
