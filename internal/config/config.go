package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Remote struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"remote"`
	Discovery struct {
		FetchFanout     int `yaml:"fetch_fanout"`
		MaxPagesPerNode int `yaml:"max_pages_per_node"`
		MaxRetries      int `yaml:"max_retries"`
	} `yaml:"discovery"`
	History struct {
		Path string `yaml:"path"` // empty disables the run ledger
	} `yaml:"history"`
	Log struct {
		Level string `yaml:"level"` // debug, info, warn, error
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}

	// 3. Override with environment variables if present
	if apiKey := os.Getenv("PAGESYNC_API_TOKEN"); apiKey != "" {
		cfg.Remote.APIKey = apiKey
	}
	if baseURL := os.Getenv("PAGESYNC_BASE_URL"); baseURL != "" {
		cfg.Remote.BaseURL = baseURL
	}

	return &cfg, nil
}
