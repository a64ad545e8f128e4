package utils

import (
	"net/url"
	"path"
	"strings"
)

// NormalizeURL normalizes a URL for deduplication and cache keys.
// The query string is kept; the fragment, default ports and trailing
// slashes are dropped.
func NormalizeURL(rawURL string) (string, error) {
	if !strings.Contains(rawURL, "://") && !strings.HasPrefix(rawURL, "//") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if (u.Scheme == "http" && u.Port() == "80") ||
		(u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}

	if u.Path == "" {
		u.Path = "/"
	} else {
		u.Path = path.Clean(u.Path)
	}
	u.RawPath = ""
	u.Fragment = ""

	result := u.String()
	if u.Path == "/" && u.RawQuery == "" && !strings.HasSuffix(result, "/") {
		result += "/"
	}
	return result, nil
}

// GetDomain extracts the host from a URL
func GetDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// IsHTTPURL checks if a URL uses HTTP or HTTPS scheme and has a host
func IsHTTPURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsGitURL checks if a string looks like a git remote
func IsGitURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "git@") ||
		strings.HasSuffix(rawURL, ".git") ||
		strings.Contains(rawURL, "github.com/") ||
		strings.Contains(rawURL, "gitlab.com/") ||
		strings.Contains(rawURL, "bitbucket.org/")
}

// TrimURLPunctuation strips characters that commonly trail a URL in prose
// or Markdown, such as closing parentheses and sentence punctuation.
func TrimURLPunctuation(rawURL string) string {
	for {
		trimmed := strings.TrimRight(rawURL, ".,;:!?'\"`>]*")
		// drop an unbalanced closing parenthesis
		if strings.HasSuffix(trimmed, ")") && strings.Count(trimmed, "(") < strings.Count(trimmed, ")") {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if trimmed == rawURL {
			return trimmed
		}
		rawURL = trimmed
	}
}

// ExcludedByPattern reports whether the URL's host is one of patterns or
// a subdomain of one. A pattern with a path ("github.com/org/private")
// also requires the URL path to start with it.
func ExcludedByPattern(rawURL string, patterns []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		pathPrefix := ""
		if i := strings.Index(p, "/"); i >= 0 {
			p, pathPrefix = p[:i], p[i:]
		}
		if (host == p || strings.HasSuffix(host, "."+p)) && strings.HasPrefix(u.Path, pathPrefix) {
			return true
		}
	}
	return false
}
