package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	// Database Configurations
	DBHost     string `mapstructure:"DB_HOST"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBPort     string `mapstructure:"DB_PORT"`

	// Server Configurations
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	GinMode       string `mapstructure:"GIN_MODE"`

	// Redfish Client Configurations
	RedfishPort           int    `mapstructure:"REDFISH_PORT"`
	RedfishVerifySSL      bool   `mapstructure:"REDFISH_VERIFY_SSL"`
	RedfishUsername       string `mapstructure:"REDFISH_USERNAME"`
	RedfishPassword       string `mapstructure:"REDFISH_PASSWORD"`
	RequestTimeoutSeconds int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	RequestRetryCount     int    `mapstructure:"REQUEST_RETRY_COUNT"`
	RequestBackoffMs      int    `mapstructure:"REQUEST_BACKOFF_MS"`

	// Scheduler Configurations
	PollIntervalSeconds   int `mapstructure:"POLL_INTERVAL_SECONDS"`
	PollWorkerConcurrency int `mapstructure:"POLL_WORKER_CONCURRENCY"`
	PollQueueSize         int `mapstructure:"POLL_QUEUE_SIZE"`

	// Security/Encryption Configurations
	EncryptionKey string `mapstructure:"COOLMON_SECRET"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Set Defaults
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "coolmon")
	v.SetDefault("DB_PASSWORD", "coolmon")
	v.SetDefault("DB_NAME", "coolmon")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("SERVER_ADDRESS", ":8000")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("REDFISH_PORT", 8080)
	v.SetDefault("REDFISH_VERIFY_SSL", false)
	v.SetDefault("REDFISH_USERNAME", "admin")
	v.SetDefault("REDFISH_PASSWORD", "admin")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 10)
	v.SetDefault("REQUEST_RETRY_COUNT", 3)
	v.SetDefault("REQUEST_BACKOFF_MS", 500)
	v.SetDefault("POLL_INTERVAL_SECONDS", 30)
	v.SetDefault("POLL_WORKER_CONCURRENCY", 5)
	v.SetDefault("POLL_QUEUE_SIZE", 100)
	v.SetDefault("COOLMON_SECRET", "1234567890123456789012345678901212345678901234567890123456789012")

	// 2. Read app.yaml if exists
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// 3. Read .env if exists (overriding app.yaml)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Ignore if .env is missing
		}
	}

	// 4. Allow Viper to read Environment Variables (highest priority)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
