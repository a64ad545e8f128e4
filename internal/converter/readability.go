package converter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// article is the main content of a page
type article struct {
	Title       string
	Description string
	HTML        string
}

// extract finds the main content of a page. A matching CSS selector wins
// over readability, and the whole body is the last resort.
func extract(html, sourceURL, selector string) (article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return article{}, err
	}

	a := article{
		Title:       pageTitle(doc),
		Description: pageDescription(doc),
	}

	if selector != "" {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			a.HTML, err = goquery.OuterHtml(sel)
			return a, err
		}
	}

	pageURL, err := url.Parse(sourceURL)
	if err != nil || !pageURL.IsAbs() {
		pageURL = &url.URL{Scheme: "https", Host: "localhost"}
	}
	if parsed, err := readability.FromReader(strings.NewReader(html), pageURL); err == nil && strings.TrimSpace(parsed.Content) != "" {
		a.HTML = parsed.Content
		if a.Title == "" {
			a.Title = strings.TrimSpace(parsed.Title)
		}
		if a.Description == "" {
			a.Description = strings.TrimSpace(parsed.Excerpt)
		}
		return a, nil
	}

	if body := doc.Find("body"); body.Length() > 0 {
		a.HTML, err = body.Html()
		return a, err
	}
	a.HTML = html
	return a, nil
}

func pageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func pageDescription(doc *goquery.Document) string {
	for _, sel := range []string{"meta[name='description']", "meta[property='og:description']"} {
		if d, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(d) != "" {
			return strings.TrimSpace(d)
		}
	}
	return ""
}
