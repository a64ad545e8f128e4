package converter

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var (
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
)

// ToMarkdown converts sanitized HTML to Markdown
func ToMarkdown(html string) (string, error) {
	out, err := md.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return CleanMarkdown(out), nil
}

// CleanMarkdown trims trailing spaces and collapses runs of blank lines
func CleanMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingSpace.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// markdownTitle returns the first ATX heading of a Markdown document
func markdownTitle(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}
