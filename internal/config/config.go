// Package config loads process configuration from the environment. Game
// content (sessions, commands, events) lives in the YAML file the session
// loader watches; this covers only the daemon's own knobs.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the daemon's process configuration.
type Config struct {
	HTTPAddr     string `env:"SAMGUK_HTTP_ADDR" envDefault:":8080"`
	DBPath       string `env:"SAMGUK_DB_PATH" envDefault:"samguk.db"`
	SessionsPath string `env:"SAMGUK_SESSIONS_PATH" envDefault:"configs/sessions.yaml"`
	LogLevel     string `env:"SAMGUK_LOG_LEVEL" envDefault:"info"`

	Workers      int           `env:"SAMGUK_WORKERS" envDefault:"4"`
	BatchSize    int           `env:"SAMGUK_BATCH_SIZE" envDefault:"16"`
	PollInterval time.Duration `env:"SAMGUK_POLL_INTERVAL" envDefault:"100ms"`
	MaxIdleWait  time.Duration `env:"SAMGUK_MAX_IDLE_WAIT" envDefault:"2s"`

	TickInterval   time.Duration `env:"SAMGUK_TICK_INTERVAL" envDefault:"1s"`
	DayLength      time.Duration `env:"SAMGUK_DAY_LENGTH" envDefault:"1m"`
	MaxCatchUpDays int           `env:"SAMGUK_MAX_CATCHUP_DAYS" envDefault:"0"`

	MaxAttempts int           `env:"SAMGUK_MAX_ATTEMPTS" envDefault:"5"`
	BaseBackoff time.Duration `env:"SAMGUK_BASE_BACKOFF" envDefault:"2s"`
}

// Load parses the environment.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}
