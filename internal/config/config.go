package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	sslModeDisable = "disable"
	sslModeRequire = "require"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	FeedDriverMemory   = "memory"
	FeedDriverPostgres = "postgres"
	FeedDriverRedis    = "redis"
)

type (
	Config struct {
		Host         string        `mapstructure:"HOST"`
		Port         string        `mapstructure:"PORT"`
		GRPCPort     string        `mapstructure:"GRPC_PORT"`
		DBDriver     string        `mapstructure:"DB_DRIVER"`
		DBHost       string        `mapstructure:"DB_HOST"`
		DBPort       string        `mapstructure:"DB_PORT"`
		DBUser       string        `mapstructure:"DB_USER"`
		DBPassword   string        `mapstructure:"DB_PASSWORD"`
		DBName       string        `mapstructure:"DB_NAME"`
		DBSSLMode    string        `mapstructure:"DB_SSL_MODE"`
		DBPath       string        `mapstructure:"DB_PATH"`
		FeedDriver   string        `mapstructure:"FEED_DRIVER"`
		FeedBuffer   int           `mapstructure:"FEED_BUFFER"`
		RedisAddr    string        `mapstructure:"REDIS_ADDR"`
		RedisPass    string        `mapstructure:"REDIS_PASSWORD"`
		RedisDB      int           `mapstructure:"REDIS_DB"`
		SSEKeepAlive time.Duration `mapstructure:"SSE_KEEPALIVE"`
		LogLevel     string        `mapstructure:"LOG_LEVEL"`
	}

	// ClientConfig configures the bookmarks CLI.
	ClientConfig struct {
		ServerURL string `mapstructure:"SERVER_URL"`
		TokenFile string `mapstructure:"TOKEN_FILE"`
		ReturnRow bool   `mapstructure:"RETURN_ROW"`
		LogLevel  string `mapstructure:"LOG_LEVEL"`
	}
)

func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKMARKER")

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "1323")
	v.SetDefault("GRPC_PORT", "9000")
	v.SetDefault("DB_DRIVER", DBDriverPostgres)
	v.SetDefault("DB_HOST", "0.0.0.0")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "db")
	v.SetDefault("DB_SSL_MODE", sslModeDisable)
	v.SetDefault("DB_PATH", "bookmarker.db")
	v.SetDefault("FEED_DRIVER", FeedDriverMemory)
	v.SetDefault("FEED_BUFFER", 64)
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SSE_KEEPALIVE", 15*time.Second)
	v.SetDefault("LOG_LEVEL", "info")

	envs := []string{
		"HOST", "PORT", "GRPC_PORT",
		"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE", "DB_PATH",
		"FEED_DRIVER", "FEED_BUFFER", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"SSE_KEEPALIVE", "LOG_LEVEL",
	}
	for _, key := range envs {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if !oneOf(cfg.DBSSLMode, sslModeDisable, sslModeRequire) {
		return errors.New(fmt.Sprintf("DB SSL mode is invalid: %s", cfg.DBSSLMode))
	}
	if !oneOf(cfg.DBDriver, DBDriverPostgres, DBDriverSQLite) {
		return errors.New(fmt.Sprintf("DB driver is invalid: %s", cfg.DBDriver))
	}
	if !oneOf(cfg.FeedDriver, FeedDriverMemory, FeedDriverPostgres, FeedDriverRedis) {
		return errors.New(fmt.Sprintf("feed driver is invalid: %s", cfg.FeedDriver))
	}
	if cfg.FeedDriver == FeedDriverPostgres && cfg.DBDriver != DBDriverPostgres {
		return errors.New("postgres feed requires the postgres DB driver")
	}
	if cfg.FeedBuffer <= 0 {
		return errors.New(fmt.Sprintf("feed buffer must be positive: %d", cfg.FeedBuffer))
	}
	return nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func NewClientConfig() (*ClientConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKMARKS")

	v.SetDefault("SERVER_URL", "http://127.0.0.1:1323")
	v.SetDefault("TOKEN_FILE", defaultTokenFile())
	v.SetDefault("RETURN_ROW", true)
	v.SetDefault("LOG_LEVEL", "warn")

	for _, key := range []string{"SERVER_URL", "TOKEN_FILE", "RETURN_ROW", "LOG_LEVEL"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := ClientConfig{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.ServerURL == "" {
		return nil, errors.New("server url is empty")
	}
	if cfg.TokenFile == "" {
		return nil, errors.New("token file is empty")
	}

	return &cfg, nil
}

// LoadDotEnv populates the process environment from path. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "load "+path)
	}
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".bookmarks-token"
	}
	return filepath.Join(dir, "bookmarks", "token")
}

func oneOf(value string, valid ...string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}
