package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SCOUTLINE_"

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) error {
	var err error
	setInt := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, key, perr)
				return
			}
			*dst = n
		}
	}
	setInt64 := func(key string, dst *int64) {
		if v := os.Getenv(EnvPrefix + key); v != "" && err == nil {
			n, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, key, perr)
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(EnvPrefix + key); v != "" && err == nil {
			f, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, key, perr)
				return
			}
			*dst = f
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + key); v != "" && err == nil {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, key, perr)
				return
			}
			*dst = d
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(EnvPrefix + key); v != "" && err == nil {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, key, perr)
				return
			}
			*dst = b
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	setInt("PORT", &cfg.Server.Port)
	setInt64("MAX_UPLOAD_BYTES", &cfg.Server.MaxUploadBytes)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)

	setInt64("HASH_BYTES", &cfg.Sampler.HashBytes)
	setInt64("SEED_BYTES", &cfg.Sampler.SeedBytes)
	setInt("SAMPLE_COUNT", &cfg.Sampler.SampleCount)
	setDuration("READ_TIMEOUT", &cfg.Sampler.ReadTimeout)

	setInt("CACHE_CAPACITY", &cfg.Cache.Capacity)
	setDuration("CACHE_TTL", &cfg.Cache.TTL)

	// Storage settings
	setString("STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("STORAGE_CODEC", &cfg.Storage.Codec)
	setString("STORAGE_CONTAINER", &cfg.Storage.Container)
	setString("STORAGE_PATH", &cfg.Storage.LocalPath)
	setString("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	setString("S3_REGION", &cfg.Storage.S3.Region)
	setString("S3_ACCESS_KEY", &cfg.Storage.S3.AccessKey)
	setString("S3_SECRET_KEY", &cfg.Storage.S3.SecretKey)
	setBool("S3_PATH_STYLE", &cfg.Storage.S3.UsePathStyle)

	setBool("DB_ENABLED", &cfg.Database.Enabled)
	setString("DB_HOST", &cfg.Database.Host)
	setInt("DB_PORT", &cfg.Database.Port)
	setString("DB_NAME", &cfg.Database.Name)
	setString("DB_USER", &cfg.Database.User)
	setString("DB_PASSWORD", &cfg.Database.Password)
	setString("DB_SSLMODE", &cfg.Database.SSLMode)

	setString("JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("JWT_ISSUER", &cfg.Auth.Issuer)

	setFloat("RATE_LIMIT_RPS", &cfg.RateLimit.RequestsPerSecond)
	setInt("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	setString("INGEST_DIR", &cfg.Ingest.Dir)
	setDuration("INGEST_DEBOUNCE", &cfg.Ingest.Debounce)
	setString("INGEST_OWNER", &cfg.Ingest.Owner)

	return err
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
