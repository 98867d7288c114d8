package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SamplerConfig struct {
	HashBytes   int64         `yaml:"hash_bytes"`
	SeedBytes   int64         `yaml:"seed_bytes"`
	SampleCount int           `yaml:"sample_count"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type CacheConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

type StorageConfig struct {
	Driver    string   `yaml:"driver"` // "local", "s3" or "none"
	Codec     string   `yaml:"codec"`  // "zstd", "snappy" or "none"
	Container string   `yaml:"container"`
	LocalPath string   `yaml:"local_path"`
	S3        S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// Enabled reports whether bearer tokens are required.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type IngestConfig struct {
	Dir      string        `yaml:"dir"`
	Debounce time.Duration `yaml:"debounce"`
	// Owner is recorded on analyses made from the watch folder.
	Owner string `yaml:"owner"`
}

// Default returns a configuration that runs locally with no external services.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			MaxUploadBytes:  2 << 30,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Sampler: SamplerConfig{
			HashBytes:   1 << 20,
			SeedBytes:   64 << 10,
			SampleCount: 15,
			ReadTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{Capacity: 1024, TTL: time.Hour},
		Storage: StorageConfig{
			Driver:    "local",
			Codec:     "zstd",
			Container: "scoutline",
			LocalPath: "/tmp/scoutline",
		},
		Database:  DatabaseConfig{Port: 5432, SSLMode: "disable"},
		RateLimit: RateLimitConfig{RequestsPerSecond: 10, Burst: 20},
		Ingest:    IngestConfig{Debounce: 500 * time.Millisecond},
	}
}

// Load reads a YAML file over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Sampler.HashBytes <= 0 || c.Sampler.SeedBytes <= 0 {
		errs = append(errs, errors.New("sampler prefix lengths must be positive"))
	}
	if c.Sampler.SampleCount < 1 {
		errs = append(errs, fmt.Errorf("sampler.sample_count %d must be at least 1", c.Sampler.SampleCount))
	}
	if c.Cache.Capacity < 1 {
		errs = append(errs, errors.New("cache.capacity must be at least 1"))
	}
	switch c.Storage.Driver {
	case "none":
	case "local":
		if c.Storage.LocalPath == "" {
			errs = append(errs, errors.New("storage.local_path required for local driver"))
		}
	case "s3":
		if c.Storage.Container == "" {
			errs = append(errs, errors.New("storage.container (bucket) required for s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Storage.Codec {
	case "", "zstd", "snappy", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.codec %q", c.Storage.Codec))
	}
	if c.Database.Enabled && (c.Database.Host == "" || c.Database.Name == "") {
		errs = append(errs, errors.New("database.host and database.name required when enabled"))
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	return errors.Join(errs...)
}
