package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/famomatic/ukgrab/internal/fetch"
)

// playControlSelector covers the play-button shapes the supported
// providers use, with the bare video element as a final target.
const playControlSelector = "button.play-button, .play-icon, [aria-label='Play'], video"

// Rod is the rod-backed Session. The browser is launched lazily on first
// use and reused for every navigation until Close.
type Rod struct {
	// Headless disables the visible browser window. Key extraction
	// through a browser extension needs a visible window, so the CLI
	// exposes a switch for it.
	Headless bool

	browser *rod.Browser
	page    *rod.Page
}

func (r *Rod) ensure() (*rod.Page, error) {
	if r.page != nil {
		return r.page, nil
	}
	controlURL, err := launcher.New().
		Headless(r.Headless).
		Set("mute-audio").
		Set("window-size", "1200,800").
		Set("user-agent", fetch.UserAgent).
		Launch()
	if err != nil {
		return nil, err
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return nil, err
	}
	r.browser = browser
	r.page = page
	return page, nil
}

func (r *Rod) Navigate(ctx context.Context, pageURL string) error {
	page, err := r.ensure()
	if err != nil {
		return err
	}
	page = page.Context(ctx)
	if err := page.Navigate(pageURL); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (r *Rod) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	page, err := r.ensure()
	if err != nil {
		return err
	}
	_, err = page.Context(ctx).Timeout(timeout).Element(selector)
	return err
}

func (r *Rod) PerformanceEntries(ctx context.Context) ([]PerfEntry, error) {
	page, err := r.ensure()
	if err != nil {
		return nil, err
	}
	obj, err := page.Context(ctx).Eval(
		`() => JSON.stringify((window.performance.getEntries() || []).map(e => ({name: e.name})))`,
	)
	if err != nil {
		return nil, err
	}
	var entries []PerfEntry
	if err := json.Unmarshal([]byte(obj.Value.Str()), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Rod) PageSource(ctx context.Context) (string, error) {
	page, err := r.ensure()
	if err != nil {
		return "", err
	}
	return page.Context(ctx).HTML()
}

func (r *Rod) ClickPlay(ctx context.Context) error {
	page, err := r.ensure()
	if err != nil {
		return err
	}
	el, err := page.Context(ctx).Timeout(10 * time.Second).Element(playControlSelector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (r *Rod) Close() error {
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	r.page = nil
	return err
}
