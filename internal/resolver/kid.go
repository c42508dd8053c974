package resolver

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"

	"github.com/Eyevinn/mp4ff/mp4"
)

// KeyIDHint derives a key identifier from the base64 protection header to
// show the operator during interactive resolution. A well-formed pssh box
// yields its first listed KID; otherwise the KID field sits at bytes 32-48
// of the box encoding, which covers the version-0 boxes these providers
// emit. Returns "" when nothing can be derived.
func KeyIDHint(header string) string {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return ""
	}
	if box, err := mp4.DecodeBox(0, bytes.NewReader(data)); err == nil {
		if pssh, ok := box.(*mp4.PsshBox); ok && len(pssh.KIDs) > 0 {
			return hex.EncodeToString(pssh.KIDs[0][:])
		}
	}
	if len(data) >= 48 {
		return hex.EncodeToString(data[32:48])
	}
	return ""
}
