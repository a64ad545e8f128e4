package converter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// removedTags never carry page content
var removedTags = []string{
	"script", "style", "noscript", "iframe", "object", "embed",
	"form", "button", "select", "textarea", "svg", "nav", "footer", "aside",
}

// chromeMarkers match class or id names of navigation and page chrome
var chromeMarkers = []string{
	"sidebar", "navigation", "navbar", "menu", "footer", "breadcrumb",
	"advertisement", "cookie", "social", "share", "comments", "related",
}

// Sanitizer strips page chrome from extracted HTML and makes links
// absolute
type Sanitizer struct {
	base    *url.URL
	exclude string
}

// NewSanitizer creates a sanitizer. exclude is an optional CSS selector
// of extra elements to drop.
func NewSanitizer(baseURL, exclude string) *Sanitizer {
	s := &Sanitizer{exclude: exclude}
	if u, err := url.Parse(baseURL); err == nil && u.IsAbs() {
		s.base = u
	}
	return s
}

// Sanitize returns the cleaned body HTML
func (s *Sanitizer) Sanitize(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	sel := doc.Selection
	sel.Find(strings.Join(removedTags, ",")).Remove()
	for _, m := range chromeMarkers {
		sel.Find("[class*='" + m + "'],[id*='" + m + "']").Remove()
	}
	sel.Find("[hidden],[aria-hidden='true'],[style*='display:none'],[style*='display: none']").Remove()
	if s.exclude != "" {
		sel.Find(s.exclude).Remove()
	}

	if s.base != nil {
		s.absolutize(sel, "a[href]", "href")
		s.absolutize(sel, "img[src]", "src")
	}

	sel.Find("p,div,span,section").Each(func(_ int, n *goquery.Selection) {
		if n.Children().Length() == 0 && strings.TrimSpace(n.Text()) == "" {
			n.Remove()
		}
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Html()
	}
	return body.Html()
}

func (s *Sanitizer) absolutize(sel *goquery.Selection, selector, attr string) {
	sel.Find(selector).Each(func(_ int, n *goquery.Selection) {
		ref, _ := n.Attr(attr)
		if ref == "" || strings.HasPrefix(ref, "#") || strings.Contains(ref, "javascript:") ||
			strings.HasPrefix(ref, "mailto:") || strings.HasPrefix(ref, "data:") {
			return
		}
		u, err := url.Parse(ref)
		if err != nil {
			return
		}
		n.SetAttr(attr, s.base.ResolveReference(u).String())
	})
}
