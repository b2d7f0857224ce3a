package scriptworker

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cryguy/scriptworker/internal/core"
)

const (
	envMemoryLimitMB    = "SCRIPTWORKER_MEMORY_LIMIT_MB"
	envStartTimeout     = "SCRIPTWORKER_START_TIMEOUT"
	envStopTimeout      = "SCRIPTWORKER_STOP_TIMEOUT"
	envExecutionTimeout = "SCRIPTWORKER_EXECUTION_TIMEOUT"
	envReportUnresolved = "SCRIPTWORKER_REPORT_UNRESOLVED"
)

// EngineConfig holds runtime configuration for the engine.
type EngineConfig = core.EngineConfig

// DefaultConfig returns the configuration New uses for zero fields.
func DefaultConfig() EngineConfig {
	return EngineConfig{}.WithDefaults()
}

// ConfigFromEnv reads the engine configuration from environment
// variables, starting from DefaultConfig. Durations use time.ParseDuration
// syntax ("750ms", "2s").
func ConfigFromEnv() (EngineConfig, error) {
	cfg := DefaultConfig()

	if v := os.Getenv(envMemoryLimitMB); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("%s: invalid memory limit %q", envMemoryLimitMB, v)
		}
		cfg.MemoryLimitMB = n
	}
	for _, d := range []struct {
		env string
		dst *time.Duration
	}{
		{envStartTimeout, &cfg.StartTimeout},
		{envStopTimeout, &cfg.StopTimeout},
		{envExecutionTimeout, &cfg.ExecutionTimeout},
	} {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		dur, err := time.ParseDuration(v)
		if err != nil || dur < 0 {
			return cfg, fmt.Errorf("%s: invalid duration %q", d.env, v)
		}
		*d.dst = dur
	}
	if v := os.Getenv(envReportUnresolved); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: invalid bool %q", envReportUnresolved, v)
		}
		cfg.ReportUnresolved = b
	}
	return cfg.WithDefaults(), nil
}
