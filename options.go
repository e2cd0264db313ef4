package slotfsm

import "log/slog"

// Logger is the default logger used when none is provided.
var Logger = slog.Default()

type options struct {
	name   string
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger for the engine. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName sets the name the engine logs and reports itself under.
// It defaults to a random UUID.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
