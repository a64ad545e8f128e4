package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// Key prefixes
const (
	PrefixPage  = "page"
	PrefixEmbed = "embed"
)

func hashKey(prefix, value string) string {
	sum := sha256.Sum256([]byte(value))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// PageKey returns the cache key for a fetched page
func PageKey(rawURL string) string {
	return hashKey(PrefixPage, normalizeForKey(rawURL))
}

// EmbeddingKey returns the cache key for one text embedded by one model
func EmbeddingKey(model, text string) string {
	return hashKey(PrefixEmbed, model+"\x00"+text)
}

// normalizeForKey makes equivalent URLs share a key
func normalizeForKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}
	if u.Path == "" {
		u.Path = "/"
	} else {
		u.Path = path.Clean(u.Path)
	}
	u.Fragment = ""
	return u.String()
}
