// Package downloader invokes the external decrypt/download tool
// (N_m3u8DL-RE). The tool owns segment downloading and CENC decryption;
// this package only satisfies its invocation protocol and locates the
// container it produces.
package downloader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Request carries everything one tool invocation needs.
type Request struct {
	ManifestURL string
	Key         string
	SaveName    string
	WorkDir     string

	// Headers are raw "Name: value" lines forwarded to the tool.
	Headers []string
}

// Tool produces a decrypted container file for a manifest.
type Tool interface {
	// Run blocks until the tool exits and returns the path of the
	// produced container.
	Run(ctx context.Context, req Request) (string, error)
}

// ToolError reports a failed tool invocation with its captured error
// stream.
type ToolError struct {
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("download tool failed: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("download tool failed: %v", e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// containerExtensions lists the output extensions the tool is known to
// produce, in probe order.
var containerExtensions = []string{".mkv", ".mp4"}

// NM3U8DLRE runs the N_m3u8DL-RE dll through the dotnet host.
type NM3U8DLRE struct {
	// DotnetPath is the dotnet host binary. Empty means "dotnet" from
	// PATH.
	DotnetPath string

	// ToolPath is the N_m3u8DL-RE dll path.
	ToolPath string

	// Stdout receives the tool's output as it arrives, so the operator
	// sees long-running progress. Nil discards it.
	Stdout io.Writer
}

func (t *NM3U8DLRE) dotnet() string {
	if t.DotnetPath != "" {
		return t.DotnetPath
	}
	return "dotnet"
}

func buildArgs(toolPath string, req Request) []string {
	args := []string{
		toolPath,
		"--url", req.ManifestURL,
		"--key", req.Key,
		"--saveName", req.SaveName,
		"--workDir", req.WorkDir,
		"--useSystemProxy", "true",
		"--autoSelect",
		"--binaryMerge",
	}
	for _, h := range req.Headers {
		args = append(args, "--header", h)
	}
	return args
}

// Run invokes the tool and streams its stdout line by line as it arrives.
func (t *NM3U8DLRE) Run(ctx context.Context, req Request) (string, error) {
	cmd := exec.CommandContext(ctx, t.dotnet(), buildArgs(t.ToolPath, req)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &ToolError{Err: err}
	}
	if err := cmd.Start(); err != nil {
		return "", &ToolError{Err: err}
	}

	out := t.Stdout
	if out == nil {
		out = io.Discard
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return "", &ToolError{Stderr: stderr.String(), Err: err}
	}
	return probeOutput(req.WorkDir, req.SaveName)
}

// probeOutput locates the container the tool produced under the accepted
// extensions.
func probeOutput(workDir, saveName string) (string, error) {
	for _, ext := range containerExtensions {
		path := filepath.Join(workDir, saveName+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", &ToolError{Err: fmt.Errorf("expected output file not found under %s", workDir)}
}
