package browser

import (
	"context"
)

// CombineContext derives from sessionCtx, keeping the chromedp values it
// carries, and cancels when opCtx is done. Callers bound an operation with
// their own context while chromedp still finds its target.
func CombineContext(sessionCtx context.Context, opCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(sessionCtx)
	if opCtx == nil || opCtx.Done() == nil {
		return combinedCtx, cancel
	}

	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
