package models

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr            string `yaml:"server_addr"`
	DatabaseURL           string `yaml:"database_url"`
	StoragePath           string `yaml:"storage_path"`
	WorkerCount           int    `yaml:"worker_count"`
	QueueCapacity         int    `yaml:"queue_capacity"`
	MaxUploadBytes        int64  `yaml:"max_upload_bytes"`
	CaptionBaseURL        string `yaml:"caption_base_url"`
	CaptionAPIKey         string `yaml:"caption_api_key"`
	CaptionTimeoutSeconds int    `yaml:"caption_timeout_seconds"`
	StoreRetryAttempts    int    `yaml:"store_retry_attempts"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Secrets and deploy-specific knobs may come from the environment instead
// of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.ServerAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		c.StoragePath = v
	}
	if v := os.Getenv("CAPTION_BASE_URL"); v != "" {
		c.CaptionBaseURL = v
	}
	if v := os.Getenv("CAPTION_API_KEY"); v != "" {
		c.CaptionAPIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.StoragePath == "" {
		c.StoragePath = "./storage"
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 100
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if c.CaptionTimeoutSeconds <= 0 {
		c.CaptionTimeoutSeconds = 15
	}
	if c.StoreRetryAttempts <= 0 {
		c.StoreRetryAttempts = 3
	}
}

func (c *Config) CaptionTimeout() time.Duration {
	return time.Duration(c.CaptionTimeoutSeconds) * time.Second
}
