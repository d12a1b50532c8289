package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Upload UploadConfig `yaml:"upload"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIToken, when set, requires a matching bearer token on every request.
	APIToken string `yaml:"api_token"`
}

type UploadConfig struct {
	// MaxBytes caps one uploaded file, archive layers included.
	MaxBytes int64 `yaml:"max_bytes"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment
// variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Upload: UploadConfig{
			MaxBytes: 64 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("SERIESCRUB_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("SERIESCRUB_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("SERIESCRUB_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERIESCRUB_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if maxStr := os.Getenv("SERIESCRUB_UPLOAD_MAX_BYTES"); maxStr != "" {
		max, err := strconv.ParseInt(maxStr, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERIESCRUB_UPLOAD_MAX_BYTES: %w", err)
		}
		cfg.Upload.MaxBytes = max
	}
	if level := os.Getenv("SERIESCRUB_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if token := os.Getenv("SERIESCRUB_API_TOKEN"); token != "" {
		cfg.Server.APIToken = token
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
