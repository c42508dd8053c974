// Package orchestrator drives one acquisition job start to finish:
// provider detection, extraction, key resolution, the external
// decrypt/download tool, optional subtitle muxing, and finalization.
// Every failure is terminal for the current job; there are no automatic
// retries anywhere.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/famomatic/ukgrab/internal/downloader"
	"github.com/famomatic/ukgrab/internal/extractor"
	"github.com/famomatic/ukgrab/internal/fetch"
	"github.com/famomatic/ukgrab/internal/muxer"
)

// Logger receives job progress and non-fatal warnings.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}

// Extractor produces a StreamManifest for a provider watch page.
type Extractor interface {
	Extract(ctx context.Context, profile extractor.Profile, pageURL string) (*extractor.StreamManifest, error)
}

// KeyResolver resolves a protection header to a decryption key.
type KeyResolver interface {
	Resolve(ctx context.Context, header, sourceURL, providerLabel string) (string, error)
}

// SubtitleFetcher downloads a subtitle track to a local path.
type SubtitleFetcher interface {
	Download(ctx context.Context, rawURL, path string) error
}

// Job is the transient state of one acquisition run, owned exclusively by
// the engine for the duration of one Process call.
type Job struct {
	ID        string
	SourceURL string
	Provider  string
	StartedAt time.Time

	Manifest     *extractor.StreamManifest
	Key          string
	OutputName   string
	SubtitlePath string
	OutputPath   string
}

// Engine is the acquisition state machine.
type Engine struct {
	Extractor Extractor
	Resolver  KeyResolver
	Tool      downloader.Tool
	Muxer     muxer.Muxer
	Subtitles SubtitleFetcher

	// OutputDir receives final artifacts; each job downloads into its
	// own subdirectory first.
	OutputDir string

	// TempDir holds transient subtitle downloads, cleared between runs.
	TempDir string

	Logger Logger

	// Now is the clock used for output naming. Nil means time.Now.
	Now func() time.Time
}

func (e *Engine) logger() Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return nopLogger{}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Process acquires the asset behind rawURL and returns the job with its
// final output path set. The returned job carries whatever state was
// reached when an error made the run terminal.
func (e *Engine) Process(ctx context.Context, rawURL string) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		SourceURL: rawURL,
		StartedAt: e.now(),
	}

	// DetectProvider
	profile, ok := extractor.Detect(rawURL)
	if !ok {
		return job, &UnsupportedServiceError{URL: rawURL}
	}
	job.Provider = profile.Name
	e.logger().Infof("detected service: %s", profile.Name)

	// Extract
	sm, err := e.Extractor.Extract(ctx, profile, rawURL)
	if err != nil {
		return job, err
	}
	job.Manifest = sm
	e.logger().Infof("manifest: %s", sm.ManifestURL)

	// ResolveKey
	key, err := e.Resolver.Resolve(ctx, sm.ProtectionHeader, rawURL, profile.Name)
	if err != nil {
		return job, err
	}
	job.Key = key

	job.OutputName = outputName(profile.Name, sm.ProgramID, job.StartedAt)

	// Subtitle download happens before the tool runs so the mux step
	// has its input ready. Failure here drops the subtitle, nothing
	// else.
	if sm.SubtitleURL != "" {
		path := filepath.Join(e.TempDir, job.OutputName+".vtt")
		if err := e.Subtitles.Download(ctx, sm.SubtitleURL, path); err != nil {
			e.logger().Warnf("subtitle download failed, continuing without: %v", err)
		} else {
			job.SubtitlePath = path
			e.logger().Infof("subtitle downloaded to %s", path)
		}
	}

	// DownloadDecrypt
	workDir := filepath.Join(e.OutputDir, job.OutputName)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return job, err
	}
	outPath, err := e.Tool.Run(ctx, downloader.Request{
		ManifestURL: sm.ManifestURL,
		Key:         key,
		SaveName:    job.OutputName,
		WorkDir:     workDir,
		Headers:     toolHeaders(sm.ManifestURL),
	})
	if err != nil {
		return job, err
	}
	e.logger().Infof("downloaded and decrypted: %s", outPath)

	// MuxSubtitle: a failure here is reported but the un-subtitled
	// container is still a usable result, so the job continues.
	if job.SubtitlePath != "" {
		if err := e.Muxer.MergeSubtitle(ctx, outPath, job.SubtitlePath); err != nil {
			e.logger().Warnf("subtitle mux failed, keeping container without subtitles: %v", err)
		}
	}

	// Finalize
	finalPath := filepath.Join(e.OutputDir, job.OutputName+"_FINAL"+filepath.Ext(outPath))
	if err := os.Rename(outPath, finalPath); err != nil {
		return job, err
	}
	job.OutputPath = finalPath
	e.logger().Infof("final output: %s", finalPath)
	return job, nil
}

// outputName builds {Provider}-{programID}-{timestamp}. Second-granularity
// timestamps keep names collision-free across sequential jobs.
func outputName(provider, programID string, at time.Time) string {
	if programID == "" {
		programID = "program"
	}
	provider = strings.ReplaceAll(provider, " ", "")
	return provider + "-" + programID + "-" + at.Format("20060102_150405")
}

// toolHeaders builds the header lines the external tool forwards with each
// segment request. The referer is the manifest's own host.
func toolHeaders(manifestURL string) []string {
	headers := []string{
		"User-Agent: " + fetch.UserAgent,
		"Accept: */*",
	}
	if u, err := url.Parse(manifestURL); err == nil && u.Host != "" {
		headers = append(headers, "Referer: "+u.Host)
	}
	return headers
}

// CleanupTemp removes transient files from the temp directory, keeping the
// directory itself.
func (e *Engine) CleanupTemp() error {
	entries, err := os.ReadDir(e.TempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(e.TempDir, entry.Name())); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup: %w", err)
		}
	}
	return firstErr
}
