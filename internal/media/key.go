package media

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// CacheKey derives a stable key for a media URL: scheme and host are
// lowercased, the fragment is dropped and query parameters are sorted, so
// equivalent spellings of one URL share a transcript.
func CacheKey(raw string) string {
	sum := sha256.Sum256([]byte(NormalizeURL(raw)))
	return hex.EncodeToString(sum[:])
}

func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		// Encode sorts by key.
		u.RawQuery = u.Query().Encode()
	}
	return u.String()
}
