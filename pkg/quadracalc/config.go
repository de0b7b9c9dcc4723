package quadracalc

import (
	"time"

	"github.com/himanishpuri/quadracalc/internal/clocksync"
	"github.com/himanishpuri/quadracalc/internal/tempo"
)

type Config struct {
	DBPath       string
	Logger       Logger
	Storage      Storage
	MaxTaps      int
	QuietPeriod  time.Duration
	ClockTimeout time.Duration
	TapListener  TapListener
	Now          func() time.Time
}

type Option func(*Config)

// WithDBPath sets the sqlite file. Without it the QUADRA_DB_PATH
// environment variable is used.
func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithMaxTaps sets the tap window size. Values below 2 keep the default.
func WithMaxTaps(n int) Option {
	return func(c *Config) {
		if n >= 2 {
			c.MaxTaps = n
		}
	}
}

func WithQuietPeriod(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.QuietPeriod = d
		}
	}
}

func WithClockTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ClockTimeout = d
		}
	}
}

// WithTapListener registers a callback for finalized tap sessions.
func WithTapListener(fn TapListener) Option {
	return func(c *Config) {
		c.TapListener = fn
	}
}

// WithNow overrides the wall clock used for timestamps and tap timing.
func WithNow(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		MaxTaps:      tempo.DefaultMaxTaps,
		QuietPeriod:  tempo.DefaultQuietPeriod,
		ClockTimeout: clocksync.DefaultTimeout,
		Now:          time.Now,
	}
}
