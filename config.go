package main

import (
	"fmt"
	"os"

	"github.com/cpacia/classic-server/tournament"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML file describing the event. Anything left out
// keeps its default.
type Config struct {
	Rules  tournament.Rules  `yaml:"rules"`
	Course tournament.Course `yaml:"course"`
}

func defaultConfig() *Config {
	return &Config{
		Rules:  tournament.DefaultRules(),
		Course: tournament.DefaultCourse(),
	}
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	if err := cfg.Course.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
