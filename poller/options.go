package poller

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Option is a functional option for configuring a [Poller].
type Option func(*Options)

// Options holds the configuration for a [Poller].
type Options struct {
	interval   time.Duration
	maxBackoff time.Duration
	logger     zerolog.Logger
}

func newOptions() *Options {
	return &Options{
		interval:   5 * time.Second,
		maxBackoff: 30 * time.Second,
		logger:     zerolog.Nop(),
	}
}

func (o *Options) validate() error {
	if o.interval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	if o.maxBackoff < o.interval {
		return errors.New("max backoff must not be less than the poll interval")
	}

	return nil
}

// WithInterval sets the base poll interval. The default is 5 seconds.
func WithInterval(d time.Duration) Option {
	return func(o *Options) {
		o.interval = d
	}
}

// WithMaxBackoff caps the wait between polls when the queue stays empty
// or the store keeps failing. The default is 30 seconds.
func WithMaxBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.maxBackoff = d
	}
}

// WithLogger sets the logger used by the poller. Logging is disabled by
// default.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}
