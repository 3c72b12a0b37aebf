// internal/browser/context_utils.go
package browser

import "context"

// CombineContext creates a context derived from ctx1 that is also cancelled
// when ctx2 is done. chromedp actions need the values carried by the tab
// context (ctx1) while honouring the caller's deadline (ctx2).
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	// Derive from ctx1 to inherit values and ctx1's cancellation/deadline.
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
