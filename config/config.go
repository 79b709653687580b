package config

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the complete engine configuration.
type Config struct {
	// Engine workflow engine settings
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Store execution store settings
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Database relational store settings
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis cache / store settings
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log logging settings
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry tracing settings
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// EngineConfig holds workflow engine settings.
type EngineConfig struct {
	// MetricsNamespace is the Prometheus namespace; empty disables metrics.
	MetricsNamespace string `yaml:"metrics_namespace" env:"METRICS_NAMESPACE"`
	// SharedCacheEnabled turns on the cross-execution tool-result cache.
	SharedCacheEnabled bool `yaml:"shared_cache_enabled" env:"SHARED_CACHE_ENABLED"`
	// SharedCacheTTL bounds shared cache entries.
	SharedCacheTTL time.Duration `yaml:"shared_cache_ttl" env:"SHARED_CACHE_TTL"`
}

// StoreConfig selects and tunes the execution store backend.
type StoreConfig struct {
	// Type is the backend: memory, redis, or database.
	Type string `yaml:"type" env:"TYPE"`
	// KeyPrefix prefixes all redis keys.
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// Retention is how long terminal executions are kept by Cleanup.
	Retention time.Duration `yaml:"retention" env:"RETENTION"`
}

// DatabaseConfig holds relational database settings.
type DatabaseConfig struct {
	// Driver is postgres or sqlite.
	Driver string `yaml:"driver" env:"DRIVER"`
	// Host of the database server
	Host string `yaml:"host" env:"HOST"`
	// Port of the database server
	Port int `yaml:"port" env:"PORT"`
	// User name
	User string `yaml:"user" env:"USER"`
	// Password for the user
	Password string `yaml:"password" env:"PASSWORD"`
	// Name of the database (or file path for sqlite)
	Name string `yaml:"name" env:"NAME"`
	// SSLMode for postgres connections
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// MaxOpenConns caps open connections
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// MaxIdleConns caps idle connections
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// ConnMaxLifetime bounds connection lifetime
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// HealthCheckInterval between background pings; 0 disables
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
}

// RedisConfig holds redis settings.
type RedisConfig struct {
	// Addr of the redis server
	Addr string `yaml:"addr" env:"ADDR"`
	// Password for the server
	Password string `yaml:"password" env:"PASSWORD"`
	// DB number
	DB int `yaml:"db" env:"DB"`
	// PoolSize of the connection pool
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// MinIdleConns kept warm
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// MaxRetries per command
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths for the logger
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// EnableCaller annotates entries with the call site
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	// Enabled turns the OTel SDK on
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLPEndpoint receives exported traces
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// ServiceName reported in resource attributes
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// SampleRate for trace sampling
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MetricsNamespace:   "seobot",
			SharedCacheEnabled: false,
			SharedCacheTTL:     15 * time.Minute,
		},
		Store: StoreConfig{
			Type:      "memory",
			KeyPrefix: "seobot:",
			Retention: 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Driver:              "postgres",
			Host:                "localhost",
			Port:                5432,
			User:                "seobot",
			Name:                "seobot",
			SSLMode:             "disable",
			MaxOpenConns:        50,
			MaxIdleConns:        10,
			ConnMaxLifetime:     time.Hour,
			HealthCheckInterval: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			OutputPaths:  []string{"stdout"},
			EnableCaller: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "seobot-workflow",
			SampleRate:   1.0,
		},
	}
}

// BuildLogger constructs a zap logger from the log configuration.
func (c LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if c.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if len(c.OutputPaths) > 0 {
		zcfg.OutputPaths = c.OutputPaths
	}
	zcfg.DisableCaller = !c.EnableCaller

	return zcfg.Build()
}
