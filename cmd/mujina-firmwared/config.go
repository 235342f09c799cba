package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's on-disk configuration: which pool to join and
// which serial device the BM13xx chain is reachable on.
type Config struct {
	Pool struct {
		URL    string `yaml:"url"`
		Worker string `yaml:"worker"`
	} `yaml:"pool"`
	Serial struct {
		Device string `yaml:"device"`
		Baud   int    `yaml:"baud"`
	} `yaml:"serial"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	return &cfg, nil
}
