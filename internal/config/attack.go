package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type AttackConfig struct {
	Target    string        `yaml:"target" default:"http://localhost:8080"`
	Path      string        `yaml:"path" default:"/stream"`
	Users     uint64        `yaml:"users" default:"10"`
	Rate      int           `yaml:"rate"`
	Duration  time.Duration `yaml:"duration" default:"30s"`
	Requests  uint64        `yaml:"requests"`
	Timeout   time.Duration `yaml:"timeout" default:"30s"`
	KeepAlive bool          `yaml:"keepAlive" default:"true"`
	Seed      *uint64       `yaml:"seed"`
	Tls       TlsConfig     `yaml:"tls"`
}

func (c *AttackConfig) validate() error {
	u, err := url.Parse(c.Target)
	if err != nil {
		return fmt.Errorf("invalid config, attack target: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid config, attack target must be an http(s) url: %q", c.Target)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid config, attack target has no host: %q", c.Target)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("invalid config, attack path must start with '/': %q", c.Path)
	}
	if c.Users == 0 {
		return fmt.Errorf("invalid config, attack users must be greater than zero")
	}
	if c.Rate < 0 {
		return fmt.Errorf("invalid config, attack rate cannot be negative: %d", c.Rate)
	}
	if c.Duration < 0 || c.Timeout < 0 {
		return fmt.Errorf("invalid config, attack duration and timeout cannot be negative")
	}
	if err := c.Tls.Validate(); err != nil {
		return fmt.Errorf("invalid config, attack tls: %w", err)
	}
	return nil
}
