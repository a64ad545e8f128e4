package converter

import (
	"path"
	"strings"
)

// Kind is the body format of a fetched page
type Kind int

const (
	KindHTML Kind = iota
	KindMarkdown
	KindText
)

// DetectKind classifies a body by its Content-Type, falling back to the
// URL extension. Unknown types are treated as HTML.
func DetectKind(contentType, rawURL string) Kind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "markdown"):
		return KindMarkdown
	case strings.Contains(ct, "text/plain"):
		return KindText
	case strings.Contains(ct, "html"):
		return KindHTML
	}

	switch urlExt(rawURL) {
	case ".md", ".mdx", ".markdown", ".mdown":
		return KindMarkdown
	case ".txt":
		return KindText
	}
	return KindHTML
}

// urlExt returns the lowercased extension of the URL path, ignoring the
// query string and fragment
func urlExt(rawURL string) string {
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Ext(u)
}
