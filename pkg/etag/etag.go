package etag

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"
)

// FromData returns a quoted strong entity tag derived from data.
func FromData(data []byte) string {
	csum := sha1.Sum(data)
	return `"` + base64.StdEncoding.EncodeToString(csum[:]) + `"`
}

// Match reports whether an If-Match header value accepts current, using
// strong comparison. An empty header matches nothing.
//
// https://www.rfc-editor.org/rfc/rfc9110#section-13.1.1
func Match(header, current string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return current != ""
	}
	if strings.HasPrefix(current, "W/") {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if strings.HasPrefix(candidate, "W/") {
			continue
		}
		if candidate == current {
			return true
		}
	}
	return false
}
