// Package browser provides the live, script-executing page session the
// extractors and the key resolver drive. The default implementation is
// backed by rod; everything consuming a session depends on the Session
// interface so tests can substitute a scripted fake.
package browser

import (
	"context"
	"time"
)

// PerfEntry is one recorded network performance entry, as reported by
// window.performance.getEntries().
type PerfEntry struct {
	Name string `json:"name"`
}

// Session is a long-lived, exclusively-owned page session.
type Session interface {
	// Navigate loads pageURL and waits for the load event.
	Navigate(ctx context.Context, pageURL string) error

	// WaitVisible blocks until selector appears in the page, or fails
	// after timeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// PerformanceEntries returns every network timing entry recorded
	// since navigation.
	PerformanceEntries(ctx context.Context) ([]PerfEntry, error)

	// PageSource returns the rendered page markup.
	PageSource(ctx context.Context) (string, error)

	// ClickPlay attempts to locate and activate a play control to
	// trigger a license exchange. Best-effort; failure is reported but
	// never fatal.
	ClickPlay(ctx context.Context) error

	// Close shuts the session down. Safe to call when never opened.
	Close() error
}
