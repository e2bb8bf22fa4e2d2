package config

import (
	"fmt"
	"os"

	"koko/stream-loadgen/internal/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Attack  AttackConfig  `yaml:"attack"`
	Sink    SinkConfig    `yaml:"sink"`
	Metrics MetricsConfig `yaml:"metrics"`
}

func (c *Config) Validate() error {
	if err := c.Attack.validate(); err != nil {
		return err
	}
	if err := c.Sink.validate(); err != nil {
		return err
	}
	if err := c.Metrics.Otel.Tls.Validate(); err != nil {
		return fmt.Errorf("invalid config, metrics otel tls: %w", err)
	}
	return nil
}

// Load reads a YAML config file. An empty path yields the defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return loadFromBytes(nil)
	}
	contents, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return loadFromBytes(contents)
}

func loadFromBytes(contents []byte) (*Config, error) {
	config := &Config{}
	if err := defaults.Set(config); err != nil {
		return nil, err
	}
	expanded := util.ExpandEnvVars(string(contents))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, err
	}
	config.Metrics.Enable.normalize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
