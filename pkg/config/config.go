package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Voyage  VoyageConfig  `mapstructure:"voyage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Cache   CacheConfig   `mapstructure:"cache"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type VoyageConfig struct {
	APIKey          string                 `mapstructure:"api_key"`
	BaseURL         string                 `mapstructure:"base_url"`
	Timeout         time.Duration          `mapstructure:"timeout"`
	DefaultModel    string                 `mapstructure:"default_model"`
	AllowedModels   []string               `mapstructure:"allowed_models"`
	ReturnDocuments bool                   `mapstructure:"return_documents"`
	Options         map[string]interface{} `mapstructure:"options"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
}

type AuthConfig struct {
	// ServiceKeys guards the local endpoint. Empty list disables auth.
	ServiceKeys []string `mapstructure:"service_keys"`
}

type MetricsConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	EnableLatency     bool `mapstructure:"enable_latency"`
	EnableUpstream    bool `mapstructure:"enable_upstream"`
	EnableConnections bool `mapstructure:"enable_connections"`
}

type BreakerConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxFailures      uint32        `mapstructure:"max_failures"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load main config file: %w", err)
	}

	setDefaultValues()
	applyEnvOverrides()

	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
		}
		// No file is fine, environment variables still apply.
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues() {
	if globalConfig.Server.Host == "" {
		globalConfig.Server.Host = "0.0.0.0"
	}
	if globalConfig.Server.Port == 0 {
		globalConfig.Server.Port = 8000
	}
	if globalConfig.Server.MetricsPort == 0 {
		globalConfig.Server.MetricsPort = 9090
	}
	if globalConfig.Voyage.BaseURL == "" {
		globalConfig.Voyage.BaseURL = "https://api.voyageai.com/v1"
	}
	if globalConfig.Voyage.Timeout == 0 {
		globalConfig.Voyage.Timeout = 30 * time.Second
	}
	if globalConfig.Voyage.DefaultModel == "" {
		globalConfig.Voyage.DefaultModel = "rerank-2.5"
	}
	if globalConfig.Breaker.Timeout == 0 {
		globalConfig.Breaker.Timeout = 30 * time.Second
	}
	if globalConfig.Breaker.MaxFailures == 0 {
		globalConfig.Breaker.MaxFailures = 5
	}
	if globalConfig.Breaker.HalfOpenRequests == 0 {
		globalConfig.Breaker.HalfOpenRequests = 3
	}
	if globalConfig.Cache.TTL == 0 {
		globalConfig.Cache.TTL = 5 * time.Minute
	}
}

// applyEnvOverrides keeps the deployment contract of the original service:
// PORT picks the listen port and VOYAGE_API_KEY supplies the upstream
// credential, regardless of what the config file says.
func applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			globalConfig.Server.Port = p
		}
	}
	if key := os.Getenv("VOYAGE_API_KEY"); key != "" {
		globalConfig.Voyage.APIKey = key
	}
}

func GetConfig() *Config {
	return &globalConfig
}
