package mount

import (
	"fmt"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/log"
	"golang.org/x/time/rate"
)

type Options struct {
	Logger   *log.Logger
	Metrics  backend.Metrics
	ReadOnly bool // Whether the mount rejects write, unlink, mkdir and rmdir.
	Limiter  *rate.Limiter
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		Logger:  log.Discard(),
		Metrics: backend.NopMetrics,
	}
}

// WithLogger sets the logger every operation of this mount reports to.
func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		o.Logger = logger
		return nil
	}
}

// WithMetrics sets the collector for operation counters and streamed bytes.
func WithMetrics(metrics backend.Metrics) Option {
	return func(o *Options) error {
		if metrics == nil {
			return fmt.Errorf("metrics must not be nil")
		}
		o.Metrics = metrics
		return nil
	}
}

// AsReadOnly specifies, if this mount is in a readonly state.
func AsReadOnly() Option {
	return func(o *Options) error {
		o.ReadOnly = true
		return nil
	}
}

// WithRateLimit allows perSecond backend calls with bursts up to burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Options) error {
		if perSecond <= 0 || burst < 1 {
			return fmt.Errorf("invalid rate limit %v/s with burst %d", perSecond, burst)
		}
		o.Limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}
