package resolver

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/famomatic/ukgrab/internal/browser"
	"github.com/famomatic/ukgrab/internal/keystore"
)

type fakeSession struct {
	navigations []string
	playClicks  int
	playErr     error
}

func (s *fakeSession) Navigate(_ context.Context, pageURL string) error {
	s.navigations = append(s.navigations, pageURL)
	return nil
}

func (s *fakeSession) WaitVisible(context.Context, string, time.Duration) error { return nil }

func (s *fakeSession) PerformanceEntries(context.Context) ([]browser.PerfEntry, error) {
	return nil, nil
}

func (s *fakeSession) PageSource(context.Context) (string, error) { return "", nil }

func (s *fakeSession) ClickPlay(context.Context) error {
	s.playClicks++
	return s.playErr
}

func (s *fakeSession) Close() error { return nil }

type scriptedPrompter struct {
	answer  string
	prompts []string
}

func (p *scriptedPrompter) Prompt(message string) (string, error) {
	p.prompts = append(p.prompts, message)
	return p.answer, nil
}

func newResolver(t *testing.T, session *fakeSession, prompter *scriptedPrompter) (*Resolver, *keystore.Store) {
	t.Helper()
	cache := keystore.Open(filepath.Join(t.TempDir(), "keys.json"), nil)
	return &Resolver{
		Cache:       cache,
		Session:     session,
		Prompter:    prompter,
		SettleDelay: -1,
	}, cache
}

func TestResolve_NoHeader(t *testing.T) {
	r, _ := newResolver(t, &fakeSession{}, &scriptedPrompter{})
	_, err := r.Resolve(context.Background(), "", "https://www.itv.com/watch/x", "ITV")
	if !errors.Is(err, ErrNoProtectionHeader) {
		t.Fatalf("expected ErrNoProtectionHeader, got %v", err)
	}
}

func TestResolve_CacheHitSkipsInteractiveProtocol(t *testing.T) {
	session := &fakeSession{}
	prompter := &scriptedPrompter{}
	r, cache := newResolver(t, session, prompter)

	const key = "11112222333344445555666677778888:99990000aaaabbbbccccddddeeeeffff"
	if err := cache.Put("QUJD", key); err != nil {
		t.Fatal(err)
	}

	got, err := r.Resolve(context.Background(), "QUJD", "https://www.channel4.com/programmes/x", "Channel4")
	if err != nil {
		t.Fatalf("Resolve error=%v", err)
	}
	if got != key {
		t.Fatalf("key=%q, want cached value unchanged", got)
	}
	if len(session.navigations) != 0 {
		t.Fatalf("cache hit must not navigate, got %v", session.navigations)
	}
	if len(prompter.prompts) != 0 {
		t.Fatalf("cache hit must not prompt, got %d prompts", len(prompter.prompts))
	}
}

func TestResolve_InteractiveMiss(t *testing.T) {
	session := &fakeSession{}
	prompter := &scriptedPrompter{answer: "  AAAA1111:BBBB2222  "}
	r, cache := newResolver(t, session, prompter)

	got, err := r.Resolve(context.Background(), "QUJD", "https://www.itv.com/watch/show", "ITV")
	if err != nil {
		t.Fatalf("Resolve error=%v", err)
	}
	if got != "aaaa1111:bbbb2222" {
		t.Fatalf("key=%q, want trimmed lower-cased answer", got)
	}
	if len(session.navigations) != 1 || session.navigations[0] != "https://www.itv.com/watch/show" {
		t.Fatalf("navigations=%v, want the source URL", session.navigations)
	}
	if session.playClicks != 1 {
		t.Fatalf("playClicks=%d, want 1", session.playClicks)
	}

	cached, ok := cache.Get("QUJD")
	if !ok || cached != "aaaa1111:bbbb2222" {
		t.Fatalf("cache=%q,%v, want normalized key written through", cached, ok)
	}
}

func TestResolve_PlayClickFailureIsNonFatal(t *testing.T) {
	session := &fakeSession{playErr: errors.New("no play button")}
	prompter := &scriptedPrompter{answer: "aa:bb"}
	r, _ := newResolver(t, session, prompter)

	got, err := r.Resolve(context.Background(), "QUJD", "https://www.my5.tv/show", "Channel5")
	if err != nil {
		t.Fatalf("Resolve error=%v", err)
	}
	if got != "aa:bb" {
		t.Fatalf("key=%q", got)
	}
}

func TestResolve_InvalidFormatLeavesCacheUntouched(t *testing.T) {
	session := &fakeSession{}
	prompter := &scriptedPrompter{answer: "not-a-key-pair"}
	r, cache := newResolver(t, session, prompter)

	_, err := r.Resolve(context.Background(), "QUJD", "https://www.itv.com/watch/show", "ITV")
	if !errors.Is(err, ErrInvalidKeyFormat) {
		t.Fatalf("expected ErrInvalidKeyFormat, got %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("cache.Len()=%d, want 0", cache.Len())
	}
}

// psshV1 builds a version-1 pssh box whose KID field lands at bytes 32-48.
func psshV1(kid [16]byte) []byte {
	box := make([]byte, 0, 52)
	box = binary.BigEndian.AppendUint32(box, 52) // box size
	box = append(box, "pssh"...)
	box = append(box, 1, 0, 0, 0) // version 1, flags 0
	systemID, _ := hex.DecodeString("edef8ba979d64acea3c827dcd51d21ed")
	box = append(box, systemID...)
	box = binary.BigEndian.AppendUint32(box, 1) // KID count
	box = append(box, kid[:]...)
	box = binary.BigEndian.AppendUint32(box, 0) // data size
	return box
}

func TestKeyIDHint_FromPsshBox(t *testing.T) {
	var kid [16]byte
	for i := range kid {
		kid[i] = byte(i + 1)
	}
	header := base64.StdEncoding.EncodeToString(psshV1(kid))

	want := hex.EncodeToString(kid[:])
	if got := KeyIDHint(header); got != want {
		t.Fatalf("KeyIDHint=%q, want %q", got, want)
	}
}

func TestKeyIDHint_FixedOffsetFallback(t *testing.T) {
	// Not a decodable box, but long enough for the fixed-offset field.
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = byte(i)
	}
	header := base64.StdEncoding.EncodeToString(raw)

	want := hex.EncodeToString(raw[32:48])
	if got := KeyIDHint(header); got != want {
		t.Fatalf("KeyIDHint=%q, want %q", got, want)
	}
}

func TestKeyIDHint_Underivable(t *testing.T) {
	if got := KeyIDHint("QUJD"); got != "" {
		t.Fatalf("KeyIDHint=%q, want empty", got)
	}
	if got := KeyIDHint("not base64!"); got != "" {
		t.Fatalf("KeyIDHint=%q, want empty", got)
	}
}

func TestResolve_HintAppearsInPrompt(t *testing.T) {
	var kid [16]byte
	kid[0] = 0xab
	header := base64.StdEncoding.EncodeToString(psshV1(kid))

	prompter := &scriptedPrompter{answer: "aa:bb"}
	r, _ := newResolver(t, &fakeSession{}, prompter)

	if _, err := r.Resolve(context.Background(), header, "https://www.itv.com/watch/x", "ITV"); err != nil {
		t.Fatalf("Resolve error=%v", err)
	}
	if len(prompter.prompts) != 1 {
		t.Fatalf("prompts=%d, want 1", len(prompter.prompts))
	}
	if !strings.Contains(prompter.prompts[0], hex.EncodeToString(kid[:])) {
		t.Fatalf("prompt missing key ID hint: %q", prompter.prompts[0])
	}
}
