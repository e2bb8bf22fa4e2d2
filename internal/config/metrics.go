package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

type MetricsConfig struct {
	Enable MetricsEnableConfig `yaml:"enable"`
	Otel   OtelConfig          `yaml:"otel"`
}

func (m MetricsConfig) Enabled() bool {
	return m.Enable.Attack || m.Enable.Host || m.Enable.Http || m.Enable.Producer || m.Enable.Runtime
}

type MetricsEnableConfig struct {
	All      bool `yaml:"all"`
	Attack   bool `yaml:"attack"`
	Host     bool `yaml:"host"`
	Http     bool `yaml:"http"`
	Producer bool `yaml:"producer"`
	Runtime  bool `yaml:"runtime"`
}

func (e *MetricsEnableConfig) normalize() {
	if e.All {
		e.Attack = true
		e.Host = true
		e.Http = true
		e.Producer = true
		e.Runtime = true
	}
}

type OtelConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Tls            TlsConfig     `yaml:"tls"`
	ExportInterval time.Duration `yaml:"exportInterval" default:"5s"`
}

func (o *OtelConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig OtelConfig
	cfg := &rawConfig{}
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("invalid config, failed to load metrics otel config: %w", err)
	}
	if err := unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid config, failed to load metrics otel config: %w", err)
	}
	*o = OtelConfig(*cfg)
	return nil
}
