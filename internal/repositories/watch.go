package repositories

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Options holds settings shared by the store backends.
type Options struct {
	Logger *zap.Logger
}

// Option customises a repository.
type Option func(*Options)

// WithLogger sets the logger used for watch failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// ApplyOptions resolves opts over the defaults.
func ApplyOptions(opts ...Option) Options {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// LogWatchEnd records why a listener stopped. Cancellation is not a failure.
func LogWatchEnd(logger *zap.Logger, op string, err error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	logger.Warn("watch stopped", zap.String("op", op), zap.Error(err))
}
