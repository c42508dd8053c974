// Package resolver turns a content-protection header into a decryption
// key. The cache is consulted first; a miss drives the interactive
// acquisition protocol through the browser session and blocks on the
// operator. Interactive resolution is a first-class terminal branch of
// key acquisition, not a placeholder.
package resolver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/famomatic/ukgrab/internal/browser"
	"github.com/famomatic/ukgrab/internal/keystore"
)

var (
	// ErrNoProtectionHeader indicates the asset offered nothing to
	// resolve a key against.
	ErrNoProtectionHeader = errors.New("no protection header available")

	// ErrInvalidKeyFormat indicates operator input without the
	// keyID:key separator. Nothing is cached.
	ErrInvalidKeyFormat = errors.New("invalid key format, expected keyID:key")
)

// Prompter is the synchronous boundary to the operator. Tests substitute
// a scripted implementation.
type Prompter interface {
	// Prompt shows message and blocks until the operator answers.
	Prompt(message string) (string, error)
}

// TerminalPrompter reads answers line-by-line from In.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p *TerminalPrompter) Prompt(message string) (string, error) {
	fmt.Fprint(p.Out, message)
	scanner := bufio.NewScanner(p.In)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return scanner.Text(), nil
}

// Logger receives resolution progress and warnings.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}

// Resolver resolves protection headers to keys.
type Resolver struct {
	Cache    *keystore.Store
	Session  browser.Session
	Prompter Prompter
	Logger   Logger

	// SettleDelay is the wait after navigation and after activating
	// the play control, giving the license exchange time to happen.
	// Negative disables; zero means 5s.
	SettleDelay time.Duration
}

func (r *Resolver) logger() Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return nopLogger{}
}

func (r *Resolver) settleDelay() time.Duration {
	if r.SettleDelay != 0 {
		return r.SettleDelay
	}
	return 5 * time.Second
}

// Resolve returns the key for header. The cache-hit path performs no
// session work and no prompting.
func (r *Resolver) Resolve(ctx context.Context, header, sourceURL, providerLabel string) (string, error) {
	if header == "" {
		return "", ErrNoProtectionHeader
	}
	if key, ok := r.Cache.Get(header); ok {
		r.logger().Infof("found cached key for protection header")
		return key, nil
	}
	return r.acquireInteractively(ctx, header, sourceURL, providerLabel)
}

// acquireInteractively re-opens the watch page, nudges the player into a
// license exchange, and asks the operator for the keyID:key pair their
// proxy extension observed.
func (r *Resolver) acquireInteractively(ctx context.Context, header, sourceURL, providerLabel string) (string, error) {
	r.logger().Infof("no cached key; starting interactive acquisition for %s", providerLabel)

	if err := r.Session.Navigate(ctx, sourceURL); err != nil {
		return "", err
	}
	if err := sleep(ctx, r.settleDelay()); err != nil {
		return "", err
	}

	if err := r.Session.ClickPlay(ctx); err != nil {
		r.logger().Warnf("could not activate play control, continuing: %v", err)
	} else if err := sleep(ctx, r.settleDelay()); err != nil {
		return "", err
	}

	message := "Check the license requests in your Widevine proxy extension.\n"
	if kid := KeyIDHint(header); kid != "" {
		message += "The key ID you need is: " + kid + "\n"
	}
	message += "Paste the keyID:key pair: "

	answer, err := r.Prompter.Prompt(message)
	if err != nil {
		return "", err
	}
	key := strings.ToLower(strings.TrimSpace(answer))
	if !strings.Contains(key, ":") {
		return "", ErrInvalidKeyFormat
	}
	if err := r.Cache.Put(header, key); err != nil {
		return "", err
	}
	return key, nil
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
