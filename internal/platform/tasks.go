package platform

import (
	"time"

	"github.com/aretw0/lifecycle/pkg/core/runtime"
)

// WaitForTasks waits up to timeout for the background tasks started with
// lifecycle.Go, such as notifications of direct writes. It reports whether
// they all finished.
func WaitForTasks(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		runtime.WaitForGlobal()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
