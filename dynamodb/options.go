package dynamodb

import (
	"errors"
	"strings"
	"time"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithStatusLocationBase] or [WithClock]) to customise the
// defaults.
type Options struct {
	statusLocationBase string
	dynamoDBAPI        API
	clock              func() time.Time
}

func newOptions() *Options {
	return &Options{
		statusLocationBase: "/restore/requests",
		clock:              time.Now,
	}
}

func (o *Options) validate() error {
	if strings.TrimSpace(o.statusLocationBase) == "" {
		return errors.New("status location base must not be empty")
	}

	return nil
}

// WithStatusLocationBase sets the URI prefix stamped onto inserted
// requests. The partition and row key are appended as the final two
// path segments. The default is "/restore/requests".
func WithStatusLocationBase(base string) Option {
	return func(o *Options) {
		o.statusLocationBase = base
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a
// custom DynamoDB configuration is required, or for injecting mocks in
// tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithClock sets a custom clock function used when computing week-bucket
// partition keys. Defaults to [time.Now]. This is useful for controlling
// time in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}
