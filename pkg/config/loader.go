package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg, a pointer to a struct with `env`/`envDefault` tags, from the
// process environment.
func Load(cfg any) error {
	return parse(cfg, env.Options{})
}

// LoadFrom is Load over an explicit environment, so tests never touch
// os.Environ.
func LoadFrom(cfg any, environ map[string]string) error {
	return parse(cfg, env.Options{Environment: environ})
}

func parse(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
