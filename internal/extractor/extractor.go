// Package extractor normalizes a provider watch page into a StreamManifest
// by driving a live page session and classifying the network requests the
// player issues.
package extractor

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/famomatic/ukgrab/internal/browser"
	"github.com/famomatic/ukgrab/internal/fetch"
	"github.com/famomatic/ukgrab/internal/manifest"
)

// StreamManifest is the normalized result of one extraction attempt.
// Constructed once, immutable afterwards.
type StreamManifest struct {
	// ManifestURL is the absolute adaptive-streaming manifest URL.
	// Always set; extraction fails without it.
	ManifestURL string

	// ProtectionHeader is the base64 content-protection header, or ""
	// for unencrypted assets.
	ProtectionHeader string

	// SubtitleURL is an optional absolute subtitle track URL.
	SubtitleURL string

	// ProgramID is a short identifier for output naming, or "".
	ProgramID string
}

// Logger receives non-fatal extraction warnings.
type Logger interface {
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any) {}

// Extractor runs the provider-independent extraction procedure.
type Extractor struct {
	Session browser.Session
	Fetcher *fetch.Client

	// WaitTimeout bounds the wait for a video element. Zero means 30s.
	WaitTimeout time.Duration

	// SettleDelay is how long the player gets to issue its network
	// requests after the video element appears. The requests are
	// asynchronous and not deterministically signaled, so this is a
	// heuristic. Negative disables; zero means 5s.
	SettleDelay time.Duration

	Logger Logger
}

func (e *Extractor) logger() Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return nopLogger{}
}

func (e *Extractor) waitTimeout() time.Duration {
	if e.WaitTimeout > 0 {
		return e.WaitTimeout
	}
	return 30 * time.Second
}

func (e *Extractor) settleDelay() time.Duration {
	if e.SettleDelay != 0 {
		return e.SettleDelay
	}
	return 5 * time.Second
}

// Extract navigates the session to pageURL and produces a StreamManifest
// for the given provider profile.
func (e *Extractor) Extract(ctx context.Context, profile Profile, pageURL string) (*StreamManifest, error) {
	if err := e.Session.Navigate(ctx, pageURL); err != nil {
		return nil, err
	}
	if err := e.Session.WaitVisible(ctx, "video", e.waitTimeout()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionTimeout, err)
	}
	if err := sleep(ctx, e.settleDelay()); err != nil {
		return nil, err
	}

	entries, err := e.Session.PerformanceEntries(ctx)
	if err != nil {
		return nil, err
	}
	manifestURL, subtitleURL := classifyEntries(entries, profile)
	if manifestURL == "" {
		return nil, ErrManifestNotDetected
	}

	header := e.fetchProtectionHeader(ctx, manifestURL)

	if subtitleURL == "" {
		subtitleURL = e.subtitleFromPageSource(ctx, pageURL)
	}

	return &StreamManifest{
		ManifestURL:      manifestURL,
		ProtectionHeader: header,
		SubtitleURL:      subtitleURL,
		ProgramID:        profile.ProgramID(pageURL),
	}, nil
}

// fetchProtectionHeader retrieves the manifest and extracts its protection
// header. Every failure degrades to "no header": encryption may
// legitimately be absent, and key resolution reports the miss downstream.
func (e *Extractor) fetchProtectionHeader(ctx context.Context, manifestURL string) string {
	body, err := e.Fetcher.Get(ctx, manifestURL)
	if err != nil {
		e.logger().Warnf("extractor: manifest fetch failed: %v", err)
		return ""
	}
	header, err := manifest.ExtractProtectionHeader(body)
	if err != nil {
		e.logger().Warnf("extractor: %v", err)
		return ""
	}
	return header
}

// classifyEntries assigns each recorded network entry to manifest or
// subtitle. Later entries overwrite earlier ones on purpose: providers may
// re-request the manifest after a failed first negotiation, and the last
// request is the one the player settled on.
func classifyEntries(entries []browser.PerfEntry, profile Profile) (manifestURL, subtitleURL string) {
	for _, entry := range entries {
		switch {
		case containsAny(entry.Name, profile.ManifestMarkers):
			manifestURL = entry.Name
		case containsAny(entry.Name, profile.SubtitleMarkers):
			subtitleURL = entry.Name
		}
	}
	return manifestURL, subtitleURL
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

var (
	trackTagPattern = regexp.MustCompile(`(?i)<track\b[^>]*>`)
	trackSrcPattern = regexp.MustCompile(`(?i)\bsrc\s*=\s*["']([^"']+)["']`)
)

// subtitleFromPageSource scans the rendered markup for a subtitle track
// element. A relative src resolves against the page's origin.
func (e *Extractor) subtitleFromPageSource(ctx context.Context, pageURL string) string {
	source, err := e.Session.PageSource(ctx)
	if err != nil {
		e.logger().Warnf("extractor: page source unavailable: %v", err)
		return ""
	}
	for _, tag := range trackTagPattern.FindAllString(source, -1) {
		if !strings.Contains(strings.ToLower(tag), `kind="subtitles"`) &&
			!strings.Contains(strings.ToLower(tag), `kind='subtitles'`) {
			continue
		}
		m := trackSrcPattern.FindStringSubmatch(tag)
		if len(m) < 2 {
			continue
		}
		return resolveAgainstOrigin(pageURL, m[1])
	}
	return ""
}

func resolveAgainstOrigin(pageURL, src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	return u.Scheme + "://" + u.Host + src
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
