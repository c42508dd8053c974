package muxer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Muxer defines the interface for media muxing operations.
type Muxer interface {
	Available() bool
	MergeSubtitle(ctx context.Context, videoPath, subtitlePath string) error
}

// FFmpegMuxer implements Muxer using the ffmpeg command line tool.
type FFmpegMuxer struct {
	Path string
}

// NewFFmpegMuxer returns a new FFmpegMuxer.
// If path is empty, it looks for "ffmpeg" in PATH.
func NewFFmpegMuxer(path string) *FFmpegMuxer {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegMuxer{Path: path}
}

// Available checks if ffmpeg is executable.
func (f *FFmpegMuxer) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// MergeSubtitle muxes the subtitle track into the video container,
// replacing the original file: the merged output goes to a temporary name,
// then the original is deleted and the output renamed over it. Audio and
// video are stream-copied; the subtitle is re-encoded to a
// container-compatible codec.
func (f *FFmpegMuxer) MergeSubtitle(ctx context.Context, videoPath, subtitlePath string) error {
	ext := filepath.Ext(videoPath)
	tempPath := strings.TrimSuffix(videoPath, ext) + "_with_subs" + ext

	// ffmpeg -i video -i subs -c copy -c:s mov_text -y temp
	args := []string{
		"-i", videoPath,
		"-i", subtitlePath,
		"-c", "copy",
		"-c:s", "mov_text",
		"-y", tempPath,
	}

	cmd := exec.CommandContext(ctx, f.Path, args...)
	if err := cmd.Run(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("ffmpeg subtitle merge failed: %w", err)
	}

	if err := os.Remove(videoPath); err != nil {
		return err
	}
	return os.Rename(tempPath, videoPath)
}
