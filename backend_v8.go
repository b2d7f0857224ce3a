//go:build v8

package scriptworker

import (
	"github.com/cryguy/scriptworker/internal/core"
	"github.com/cryguy/scriptworker/internal/v8engine"
)

// Backend names the JS engine compiled into this build.
const Backend = "v8"

func newRuntime(memoryLimitMB int) (core.JSRuntime, error) {
	return v8engine.New(memoryLimitMB)
}
