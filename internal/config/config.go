package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Gateway struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"gateway"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Board struct {
		MaxName     int `yaml:"max_name"`
		MinThought  int `yaml:"min_thought"`
		MaxThought  int `yaml:"max_thought"`
		PreviewSize int `yaml:"preview_size"`
	} `yaml:"board"`
}

// Board defaults; bounds are deployment knobs, not domain invariants.
const (
	DefaultMaxName     = 45
	DefaultMinThought  = 20
	DefaultMaxThought  = 1200
	DefaultPreviewSize = 180
)

// Load reads YAML config from path and fills in board defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Board.MaxName == 0 {
		cfg.Board.MaxName = DefaultMaxName
	}
	if cfg.Board.MinThought == 0 {
		cfg.Board.MinThought = DefaultMinThought
	}
	if cfg.Board.MaxThought == 0 {
		cfg.Board.MaxThought = DefaultMaxThought
	}
	if cfg.Board.PreviewSize == 0 {
		cfg.Board.PreviewSize = DefaultPreviewSize
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
