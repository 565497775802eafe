package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-level configuration. Precedence: defaults, then the
// YAML file, then environment overrides.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	HTTP      HTTPConfig      `yaml:"http"`
	Ops       OpsConfig       `yaml:"ops"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatabaseConfig configures the settings store connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the pending-task store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// HTTPConfig tunes outbound vendor calls.
type HTTPConfig struct {
	// Timeout bounds generic vendor calls.
	Timeout time.Duration `yaml:"timeout"`
	// SlowTimeout bounds video/music calls, which run much longer.
	SlowTimeout time.Duration `yaml:"slow_timeout"`
	// RatePerSecond caps outbound calls per provider; 0 disables limiting.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// OpsConfig configures the operational HTTP endpoint (metrics, health).
type OpsConfig struct {
	Addr string `yaml:"addr"`
}

// TelemetryConfig configures OpenTelemetry export. Disabled by default;
// the instruments then run against the no-op global providers.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Redis: RedisConfig{Addr: "localhost:6379"},
		HTTP: HTTPConfig{
			Timeout:       2 * time.Minute,
			SlowTimeout:   10 * time.Minute,
			RatePerSecond: 2,
		},
		Ops: OpsConfig{Addr: ":9090"},
		Telemetry: TelemetryConfig{
			ServiceName:  "filmforge",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Loader loads configuration with the defaults, YAML file, env precedence.
type Loader struct {
	path      string
	envPrefix string
}

// NewLoader creates a Loader with no file and the FILMFORGE env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "FILMFORGE"}
}

// WithConfigPath sets the YAML file to read. A missing file is not an
// error; the file tier is simply skipped.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load produces the effective configuration.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		switch {
		case os.IsNotExist(err):
			// defaults + env only
		case err != nil:
			return cfg, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file %s: %w", l.path, err)
			}
		}
	}

	l.applyEnv(&cfg)
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	if v := os.Getenv(l.envPrefix + "_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv(l.envPrefix + "_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv(l.envPrefix + "_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv(l.envPrefix + "_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv(l.envPrefix + "_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Timeout = d
		}
	}
	if v := os.Getenv(l.envPrefix + "_HTTP_SLOW_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.SlowTimeout = d
		}
	}
	if v := os.Getenv(l.envPrefix + "_HTTP_RATE_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.RatePerSecond = f
		}
	}
	if v := os.Getenv(l.envPrefix + "_OPS_ADDR"); v != "" {
		cfg.Ops.Addr = v
	}
	if v := os.Getenv(l.envPrefix + "_TELEMETRY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Telemetry.Enabled = b
		}
	}
	if v := os.Getenv(l.envPrefix + "_TELEMETRY_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv(l.envPrefix + "_TELEMETRY_SERVICE_NAME"); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	if v := os.Getenv(l.envPrefix + "_TELEMETRY_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Telemetry.SampleRate = f
		}
	}
}
