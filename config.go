package observe

import (
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration for telemetry. Explicit Init options
// take precedence; unset values resolve from the environment.
type Config struct {
	// DSN is the credentialed URL identifying the monitoring project.
	// Telemetry cannot initialize without one.
	DSN string `envconfig:"SENTRY_DSN"`

	// SampleRate is the fraction of transactions and errors uploaded to
	// the monitoring backend, in [0, 1].
	SampleRate float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`
}

// configFromEnv resolves Config from the environment.
func configFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, Error.Wrap(err)
	}
	return cfg, nil
}
