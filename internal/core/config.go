package core

import (
	"time"

	"go.uber.org/zap"
)

// EngineConfig holds runtime configuration for the worker engine.
type EngineConfig struct {
	MemoryLimitMB    int           // runtime memory limit, 0 for unlimited
	StartTimeout     time.Duration // bound on the startup handshake
	StopTimeout      time.Duration // bound on joining the engine goroutine
	ExecutionTimeout time.Duration // watchdog per evaluation, 0 disables it
	ReportUnresolved bool          // deliver ErrorReports for unresolvable loads

	// Logger overrides the package logger for one engine.
	Logger *zap.Logger
}

const (
	DefaultStartTimeout = time.Second
	DefaultStopTimeout  = 500 * time.Millisecond
)

// WithDefaults fills in zero-valued timeouts.
func (c EngineConfig) WithDefaults() EngineConfig {
	if c.StartTimeout <= 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	return c
}
