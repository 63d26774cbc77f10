package config

import (
	"fmt"
	"regexp"

	"github.com/caarlos0/env/v11"
)

// MaxInstanceNameLength bounds instance names, which end up in Redis channel names.
const MaxInstanceNameLength = 63

// InstanceNamePattern accepts lowercase alphanumerics with inner hyphens.
var InstanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Runtime holds the process settings that come from the environment rather
// than lair.yml.
type Runtime struct {
	InstanceName string `env:"LAIR_INSTANCE_NAME" envDefault:"default-lair"`
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	ConfigPath   string `env:"LAIR_CONFIG" envDefault:"lair.yml"`
	HTTPAddr     string `env:"LAIR_HTTP_ADDR"`
	LogLevel     string `env:"LAIR_LOG_LEVEL" envDefault:"info"`
	Seed         uint64 `env:"LAIR_SEED"`
}

// ParseEnv fills target from the environment.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ValidateInstanceName checks that name is usable as an instance name.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxInstanceNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxInstanceNameLength)
	}

	if !InstanceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// LoadRuntime parses the runtime settings from the environment.
func LoadRuntime() (Runtime, error) {
	var rt Runtime
	if err := ParseEnv(&rt); err != nil {
		return Runtime{}, err
	}
	if err := ValidateInstanceName(rt.InstanceName); err != nil {
		return Runtime{}, fmt.Errorf("LAIR_INSTANCE_NAME: %w", err)
	}
	return rt, nil
}
