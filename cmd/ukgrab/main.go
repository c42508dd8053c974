// Command ukgrab acquires a playable, decrypted asset from a
// DRM-protected stream, given the page URL a viewer would watch.
// Supported providers: Channel 4, ITV, Channel 5.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/famomatic/ukgrab/internal/browser"
	"github.com/famomatic/ukgrab/internal/downloader"
	"github.com/famomatic/ukgrab/internal/extractor"
	"github.com/famomatic/ukgrab/internal/fetch"
	"github.com/famomatic/ukgrab/internal/keystore"
	"github.com/famomatic/ukgrab/internal/muxer"
	"github.com/famomatic/ukgrab/internal/orchestrator"
	"github.com/famomatic/ukgrab/internal/resolver"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// consoleLogger satisfies the Logger interfaces of every internal package.
type consoleLogger struct{}

func (consoleLogger) Infof(format string, args ...any) {
	fmt.Printf(green("• ")+format+"\n", args...)
}

func (consoleLogger) Warnf(format string, args ...any) {
	fmt.Printf(yellow("! ")+format+"\n", args...)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, red("✗ ")+format+"\n", args...)
	os.Exit(1)
}

// envOr reads an environment override with a fallback default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// Environment overrides may live in a .env file; absence is fine.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		fail("cannot determine home directory: %v", err)
	}

	var (
		pageURL    = flag.String("url", "", "URL of the show to download")
		noHeadless = flag.Bool("no-headless", false, "Disable headless browser mode")
		toolPath   = flag.String("tool", envOr("UKGRAB_TOOL", filepath.Join(home, "tools", "N_m3u8DL-RE", "N_m3u8DL-RE.dll")), "Path to the N_m3u8DL-RE dll")
		ffmpegPath = flag.String("ffmpeg", envOr("UKGRAB_FFMPEG", ""), "Path to ffmpeg (default: from PATH)")
		outDir     = flag.String("out", envOr("UKGRAB_OUT", filepath.Join(home, "Downloads", "UKStreamDownloads")), "Download directory")
		storePath  = flag.String("keystore", envOr("UKGRAB_KEYSTORE", filepath.Join(home, ".widevine_proxy_data.json")), "Persisted key cache file")
	)
	flag.Parse()

	fmt.Println("UK STREAMING SERVICE DOWNLOADER")
	fmt.Println("===============================")

	// Dependency preflight: without the external tools nothing
	// downstream can succeed.
	if _, err := os.Stat(*toolPath); err != nil {
		fail("N_m3u8DL-RE not found at %s", *toolPath)
	}
	ffmpeg := muxer.NewFFmpegMuxer(*ffmpegPath)
	if !ffmpeg.Available() {
		fail("ffmpeg not found; install it or pass --ffmpeg")
	}

	tempDir := filepath.Join(*outDir, "temp")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		fail("cannot create download directories: %v", err)
	}

	logger := consoleLogger{}
	session := &browser.Rod{Headless: !*noHeadless}
	fetcher := &fetch.Client{}
	cache := keystore.Open(*storePath, logger)
	if cache.Len() > 0 {
		logger.Infof("loaded %d cached key(s)", cache.Len())
	}

	engine := &orchestrator.Engine{
		Extractor: &extractor.Extractor{
			Session: session,
			Fetcher: fetcher,
			Logger:  logger,
		},
		Resolver: &resolver.Resolver{
			Cache:    cache,
			Session:  session,
			Prompter: &resolver.TerminalPrompter{In: os.Stdin, Out: os.Stdout},
			Logger:   logger,
		},
		Tool: &downloader.NM3U8DLRE{
			ToolPath: *toolPath,
			Stdout:   os.Stdout,
		},
		Muxer:     ffmpeg,
		Subtitles: fetcher,
		OutputDir: *outDir,
		TempDir:   tempDir,
		Logger:    logger,
	}

	// The session and temp dir are released on every exit path,
	// including operator interrupt.
	cleanup := func() {
		if err := session.Close(); err != nil {
			logger.Warnf("closing browser: %v", err)
		}
		if err := engine.CleanupTemp(); err != nil {
			logger.Warnf("%v", err)
		}
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println()
		logger.Warnf("operation cancelled by user")
		cancel()
	}()

	target := strings.TrimSpace(*pageURL)
	if target == "" {
		fmt.Print("Paste the show URL: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			cleanup()
			fail("no URL provided")
		}
		target = strings.TrimSpace(scanner.Text())
	}

	job, err := engine.Process(ctx, target)
	if err != nil {
		cleanup()
		fail("job failed: %v", err)
	}

	fmt.Println()
	fmt.Println(green("DOWNLOAD COMPLETE"))
	fmt.Printf("Provider: %s\n", job.Provider)
	fmt.Printf("Output:   %s\n", job.OutputPath)
}
