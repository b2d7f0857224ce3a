//go:build !v8

package scriptworker

import (
	"github.com/cryguy/scriptworker/internal/core"
	"github.com/cryguy/scriptworker/internal/quickjs"
)

// Backend names the JS engine compiled into this build.
const Backend = "quickjs"

func newRuntime(memoryLimitMB int) (core.JSRuntime, error) {
	return quickjs.New(memoryLimitMB)
}
