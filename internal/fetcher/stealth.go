package fetcher

import (
	"math/rand/v2"
	"strings"
	"time"
)

// UserAgents is the pool a random agent is drawn from when none is configured
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:132.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9,en-US;q=0.8",
	"en,en-US;q=0.9",
}

var platforms = []string{`"Windows"`, `"macOS"`, `"Linux"`}

// RandomUserAgent returns a random user agent from the pool
func RandomUserAgent() string {
	return pick(UserAgents)
}

func pick(values []string) string {
	return values[rand.IntN(len(values))]
}

// StealthHeaders returns browser navigation headers for a page request
func StealthHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = RandomUserAgent()
	}

	headers := map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           pick(acceptLanguages),
		"Accept-Encoding":           "gzip, deflate, br",
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
	}

	if isChrome(userAgent) {
		headers["Sec-CH-UA"] = `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`
		headers["Sec-CH-UA-Mobile"] = "?0"
		headers["Sec-CH-UA-Platform"] = pick(platforms)
	}

	return headers
}

// isChrome reports whether the agent is Chromium based. Firefox and
// Safari never send client hints.
func isChrome(userAgent string) bool {
	return strings.Contains(userAgent, "Chrome") || strings.Contains(userAgent, "Chromium")
}

// RandomDelay returns a duration in [lo, hi)
func RandomDelay(lo, hi time.Duration) time.Duration {
	if lo >= hi {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}
