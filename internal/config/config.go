package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	Notifier Notifier `mapstructure:"notifier"`
	Medals   Medals   `mapstructure:"medals"`
}

// Server holds the configuration for the HTTP API.
type Server struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Notifier holds the configuration for the achievement notification webhook.
type Notifier struct {
	Enabled        bool    `mapstructure:"enabled"`
	URL            string  `mapstructure:"url"`
	ApiKey         string  `mapstructure:"api_key"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	Timeout        int     `mapstructure:"timeout"` // seconds
}

// Medals holds the configuration for the periodic medal sweep.
type Medals struct {
	SweepSchedule    string `mapstructure:"sweep_schedule"`
	SweepConcurrency int    `mapstructure:"sweep_concurrency"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory, if present, is loaded into the
// environment first.
func LoadConfig(path string) (config Config, err error) {
	if err = godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("database.dsn", filepath.Join("data", "journal.db"))
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("notifier.rate_limit", 5) // requests per second
	v.SetDefault("notifier.rate_limit_burst", 2)
	v.SetDefault("notifier.timeout", 10)
	v.SetDefault("medals.sweep_schedule", "@every 1h")
	v.SetDefault("medals.sweep_concurrency", 4)

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	return
}
