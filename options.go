package automata

import "log/slog"

// Option configures simulator construction.
//
// Example:
//
//	sim, err := automata.New(cfg,
//		automata.WithBackend("cpu"),
//		automata.WithSchedule(automata.ScheduleWorkGroup),
//	)
type Option func(*Options)

// Options holds the resolved construction options. Backend factories
// receive it.
type Options struct {
	// Workers is the CPU worker count. 0 means GOMAXPROCS.
	Workers int

	Schedule Schedule

	// Backend restricts New to one registered backend.
	Backend string

	// Logger is never nil once resolved.
	Logger *slog.Logger
}

func newOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = Logger()
	}
	return o
}

// WithWorkers sets the number of CPU workers.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithSchedule selects how the CPU backend maps work onto goroutines.
func WithSchedule(s Schedule) Option {
	return func(o *Options) {
		o.Schedule = s
	}
}

// WithBackend selects a registered backend by name.
func WithBackend(name string) Option {
	return func(o *Options) {
		o.Backend = name
	}
}

// WithLogger sets the logger of the constructed simulator. The package
// logger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}
