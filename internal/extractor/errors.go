package extractor

import "errors"

var (
	// ErrExtractionTimeout indicates the video element never appeared.
	// Reported, not retried: repeated timeouts usually mean the page
	// structure changed.
	ErrExtractionTimeout = errors.New("timed out waiting for video player")

	// ErrManifestNotDetected indicates no manifest request was seen in
	// the session's network entries.
	ErrManifestNotDetected = errors.New("manifest not detected")
)
