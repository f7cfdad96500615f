package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	StorageDriver   string   `mapstructure:"STORAGE_DRIVER"`
	SQLitePath      string   `mapstructure:"SQLITE_PATH"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	AuthSecret      string   `mapstructure:"AUTH_SECRET"`
	AuthIssuer      string   `mapstructure:"AUTH_ISSUER"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	HistoryCapacity int      `mapstructure:"HISTORY_CAPACITY"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("SQLITE_PATH", "dosecalc.db")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("HISTORY_CAPACITY", 3)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("STORAGE_DRIVER")
	v.BindEnv("SQLITE_PATH")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("HISTORY_CAPACITY")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// AUTH_SECRET must be set so that real JWT authentication is enforced, and
// the storage driver must have what it needs to persist the ledger.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER is \"postgres\"")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be \"memory\", \"sqlite\", or \"postgres\", got %q", c.StorageDriver)
	}

	if c.StorageDriver == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required when STORAGE_DRIVER is \"sqlite\"")
	}

	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when ENV is not \"development\". " +
			"Refusing to start without authentication configuration")
	}

	if c.HistoryCapacity < 1 {
		return fmt.Errorf("HISTORY_CAPACITY must be at least 1, got %d", c.HistoryCapacity)
	}

	return nil
}
