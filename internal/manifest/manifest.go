// Package manifest extracts the DRM content-protection header from DASH
// manifests. Providers are inconsistent about the canonical cenc namespace,
// so extraction is two-tier: a schema-aware pass over the parsed MPD, then
// a permissive scan of the raw XML for anything that looks like a pssh
// element.
package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"41.neocities.org/dash"
)

// WidevineSchemeURN is the standardized common-encryption system identifier
// carried on ContentProtection elements.
const WidevineSchemeURN = "urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed"

// ErrManifestParse indicates the manifest body was not usable XML. Callers
// treat this as "no manifest data available", not as a fatal condition.
var ErrManifestParse = errors.New("manifest parse error")

// ExtractProtectionHeader returns the base64 protection header text from an
// MPD body, or "" when the asset carries no protection. Unencrypted assets
// are legitimate, so absence is not an error.
func ExtractProtectionHeader(body []byte) (string, error) {
	if header := schemeMatch(body); header != "" {
		return header, nil
	}
	return psshScan(body)
}

// schemeMatch walks the parsed MPD looking for a Widevine ContentProtection
// element with an embedded pssh payload.
func schemeMatch(body []byte) string {
	mpd, err := dash.Parse(body)
	if err != nil {
		// Not a schema-valid MPD. The permissive scan decides whether
		// the XML itself is usable.
		return ""
	}
	for _, group := range mpd.GetRepresentations() {
		for _, rep := range group {
			for _, protection := range rep.ContentProtection {
				if !strings.EqualFold(protection.SchemeIdUri, WidevineSchemeURN) {
					continue
				}
				if header := strings.TrimSpace(protection.Pssh); header != "" {
					return header
				}
			}
		}
	}
	return ""
}

// psshScan visits every element and returns the text of the first one whose
// tag contains "pssh" (any case) with non-empty content.
func psshScan(body []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrManifestParse, err)
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if !strings.Contains(strings.ToLower(start.Name.Local), "pssh") {
			continue
		}
		text, err := elementText(decoder)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrManifestParse, err)
		}
		if text != "" {
			return text, nil
		}
	}
}

// elementText collects character data until the current element closes.
func elementText(decoder *xml.Decoder) (string, error) {
	var text strings.Builder
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return strings.TrimSpace(text.String()), nil
}
