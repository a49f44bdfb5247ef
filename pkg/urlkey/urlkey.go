// Package urlkey turns source URLs into stable cache keys.
//
// URLs are normalized (tracking parameters stripped, fragment dropped,
// scheme and host case-folded) and hashed with SHA-256, so that URLs
// differing only in tracking noise map to the same key.
package urlkey

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// ErrInvalidURL is returned for input that cannot be used as a cache key.
var ErrInvalidURL = errors.New("invalid url")

// trackingParams is the deny-list of query parameter keys stripped during
// normalization. Keys are matched case-insensitively; "utm_" matches as a
// prefix.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"ref":     true,
	"source":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"igshid":  true,
}

// Hasher produces content hashes for source URLs. It keeps a process-local
// memo from raw URL string to hash; the memo is purely an optimization and
// may be cleared at any time.
type Hasher struct {
	memo sync.Map // raw url -> hex hash
}

// NewHasher creates a Hasher with an empty memo.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Normalize canonicalizes a URL: lowercases scheme and host, strips
// deny-listed tracking query parameters, preserves the relative order of
// the remaining parameters and drops any fragment.
// Normalize is idempotent.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: missing scheme or host in %q", ErrInvalidURL, rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = stripTracking(u.RawQuery)

	return u.String(), nil
}

// stripTracking removes deny-listed keys from a raw query string while
// keeping the surviving pairs in their original order and encoding.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.Index(pair, "="); i >= 0 {
			key = pair[:i]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	return trackingParams[key]
}

// Hash returns the lowercase hex SHA-256 of the normalized URL.
// Identical URLs, or URLs differing only in stripped tracking parameters,
// yield identical hashes. Malformed input fails without a partial hash.
func (h *Hasher) Hash(rawURL string) (string, error) {
	if cached, ok := h.memo.Load(rawURL); ok {
		return cached.(string), nil
	}

	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(normalized))
	digest := hex.EncodeToString(sum[:])
	h.memo.Store(rawURL, digest)
	return digest, nil
}

// Clear drops the memo. Safe to call concurrently with Hash.
func (h *Hasher) Clear() {
	h.memo.Range(func(k, _ any) bool {
		h.memo.Delete(k)
		return true
	})
}
