package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Option adjusts how ParseEnv reads the environment.
type Option func(*env.Options)

// WithEnvironment reads variables from vars instead of the process
// environment.
func WithEnvironment(vars map[string]string) Option {
	return func(opts *env.Options) {
		opts.Environment = vars
	}
}

// ParseEnv loads configuration from environment variables. Nested structs
// are parsed in place so a binary config can embed the shared ones.
func ParseEnv(target any, options ...Option) error {
	var opts env.Options
	for _, option := range options {
		option(&opts)
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
