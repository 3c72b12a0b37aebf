// internal/browser/interface.go
package browser

import (
	"context"
	"errors"
)

// Classified failures. Page implementations wrap their errors with these so
// callers can use errors.Is instead of matching driver messages.
var (
	ErrElementNotFound = errors.New("element not found")
	ErrNavigation      = errors.New("navigation failed")
	ErrClosed          = errors.New("browser closed")
)

// Driver starts browser processes.
type Driver interface {
	// Launch starts one visible browser instance.
	Launch(ctx context.Context) (Browser, error)
	// Close stops the driver. Browsers it launched must be closed first.
	Close() error
}

// Browser is a running browser instance.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. Every method blocks until the operation completes,
// fails, or exceeds its configured timeout.
type Page interface {
	Goto(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	// Fill replaces the current value of the element with text.
	Fill(ctx context.Context, selector, text string) error
	TextContent(ctx context.Context, selector string) (string, error)
	// Screenshot writes a PNG of the viewport to path, overwriting it.
	Screenshot(ctx context.Context, path string) error
	Close() error
}
