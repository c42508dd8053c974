package extractor

import (
	"net/url"
	"regexp"
	"strings"
)

// Profile configures extraction for one provider. The extraction procedure
// is identical across providers; only the URL-classification markers and
// the program-ID pattern differ.
type Profile struct {
	// Name labels the provider in output names and operator messages.
	Name string

	// Hosts are domain markers matched against a page URL's host.
	Hosts []string

	// ManifestMarkers identify a network entry as the manifest request.
	ManifestMarkers []string

	// SubtitleMarkers identify a network entry as a subtitle request.
	SubtitleMarkers []string

	// ProgramIDPattern derives a short identifier from the page URL's
	// path. First capture group wins. Best-effort; used only for
	// output naming.
	ProgramIDPattern *regexp.Regexp
}

var (
	// Channel4 numbers its programmes, optionally with an episode
	// suffix (/1234-5).
	Channel4 = Profile{
		Name:             "Channel4",
		Hosts:            []string{"channel4.com", "all4.com"},
		ManifestMarkers:  []string{".mpd"},
		SubtitleMarkers:  []string{".vtt", "/subs."},
		ProgramIDPattern: regexp.MustCompile(`/(\d+)(?:-\d+)?(?:/|$)`),
	}

	// ITV serves some assets over smooth streaming, so ".ism/" also
	// marks the manifest.
	ITV = Profile{
		Name:             "ITV",
		Hosts:            []string{"itv.com", "itvx.com"},
		ManifestMarkers:  []string{".mpd", ".ism/"},
		SubtitleMarkers:  []string{".vtt", "/subs.", "subtitles"},
		ProgramIDPattern: regexp.MustCompile(`/([0-9a-zA-Z]+)(?:/|$)`),
	}

	Channel5 = Profile{
		Name:             "Channel5",
		Hosts:            []string{"channel5.com", "my5.tv"},
		ManifestMarkers:  []string{".mpd"},
		SubtitleMarkers:  []string{".vtt", "subtitles"},
		ProgramIDPattern: regexp.MustCompile(`/([0-9a-zA-Z]+)(?:/|$)`),
	}

	profiles = []Profile{Channel4, ITV, Channel5}
)

// Detect matches a page URL's host against the known providers.
func Detect(rawURL string) (Profile, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Profile{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range profiles {
		for _, marker := range p.Hosts {
			if host == marker || strings.HasSuffix(host, "."+marker) {
				return p, true
			}
		}
	}
	return Profile{}, false
}

// ProgramID derives the provider-specific short identifier from the page
// URL's path. Returns "" when undetectable; callers fall back to a
// placeholder.
func (p Profile) ProgramID(rawURL string) string {
	if p.ProgramIDPattern == nil {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	m := p.ProgramIDPattern.FindStringSubmatch(u.Path)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
