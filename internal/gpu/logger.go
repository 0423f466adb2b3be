//go:build !nogpu

package gpu

import (
	"log/slog"
	"sync/atomic"
)

var (
	loggerPtr atomic.Pointer[slog.Logger]
	discard   = slog.New(slog.DiscardHandler)
)

// slogger returns the package logger, silent until setLogger installs one.
func slogger() *slog.Logger {
	if l := loggerPtr.Load(); l != nil {
		return l
	}
	return discard
}

// setLogger installs l for every kernel of the process. KernelSimulator
// calls it when automata propagates a logger; nil restores silence.
func setLogger(l *slog.Logger) {
	loggerPtr.Store(l)
}
