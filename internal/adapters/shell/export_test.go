package shell

import "go.trai.ch/crossbox/internal/core/ports"

// ResolveEnvironment exports resolveEnvironment for testing.
var ResolveEnvironment = resolveEnvironment

// NewLogWriter exposes the line-buffering writer for testing.
func NewLogWriter(logger ports.Logger) interface {
	Write(p []byte) (int, error)
	Flush()
} {
	return &logWriter{logger: logger, level: "info"}
}
