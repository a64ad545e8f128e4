package converter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Vector Search Guide</title>
	<meta name="description" content="How vector search works">
</head>
<body>
	<nav><a href="/">Home</a></nav>
	<div class="sidebar">Sidebar links</div>
	<main>
		<h1>Vector Search</h1>
		<p>Embeddings map text into a dense space. See <a href="/docs/embeddings">the embeddings page</a>.</p>
		<p>Similar texts end up close together, which makes nearest neighbour queries useful.</p>
		<script>track()</script>
	</main>
	<footer>Copyright</footer>
</body>
</html>`

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		url         string
		want        Kind
	}{
		{"html header", "text/html; charset=utf-8", "https://a.dev/x", KindHTML},
		{"markdown header", "text/markdown", "https://a.dev/x", KindMarkdown},
		{"plain header", "text/plain", "https://a.dev/x", KindText},
		{"md extension", "", "https://a.dev/README.md?raw=1", KindMarkdown},
		{"txt extension", "application/octet-stream", "https://a.dev/llms.txt#top", KindText},
		{"unknown defaults to html", "", "https://a.dev/page", KindHTML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectKind(tt.contentType, tt.url))
		})
	}
}

func TestToUTF8(t *testing.T) {
	latin1, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte("café"))
	require.NoError(t, err)

	out, err := ToUTF8(latin1, "text/html; charset=iso-8859-1")
	require.NoError(t, err)
	assert.Equal(t, "café", string(out))

	utf, err := ToUTF8([]byte("naïve"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "naïve", string(utf))
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer("https://docs.example.com/guide/", ".ads")
	out, err := s.Sanitize(`<div><p>Keep <a href="../api">api</a></p><div class="ads">buy</div>` +
		`<div class="sidebar">nav</div><script>x()</script><p hidden>secret</p><p></p></div>`)
	require.NoError(t, err)

	assert.Contains(t, out, "Keep")
	assert.Contains(t, out, `href="https://docs.example.com/api"`)
	assert.NotContains(t, out, "buy")
	assert.NotContains(t, out, "nav")
	assert.NotContains(t, out, "x()")
	assert.NotContains(t, out, "secret")
}

func TestPipeline_ConvertHTML(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewPipeline(Options{ContentSelector: "main"})
	p.now = func() time.Time { return fixed }

	page, err := p.Convert(context.Background(), &domain.Response{
		StatusCode:  200,
		Body:        []byte(articleHTML),
		ContentType: "text/html; charset=utf-8",
		URL:         "https://docs.example.com/guide",
	})
	require.NoError(t, err)

	assert.Equal(t, "Vector Search Guide", page.Title)
	assert.Equal(t, "How vector search works", page.Description)
	assert.Contains(t, page.Markdown, "# Vector Search")
	assert.Contains(t, page.Markdown, "(https://docs.example.com/docs/embeddings)")
	assert.NotContains(t, page.Markdown, "Sidebar")
	assert.NotContains(t, page.Markdown, "Copyright")
	assert.NotContains(t, page.Markdown, "track()")
	assert.Len(t, page.ContentHash, 64)
	assert.Equal(t, fixed, page.FetchedAt)
}

func TestPipeline_ConvertReadability(t *testing.T) {
	page, err := NewPipeline(Options{}).Convert(context.Background(), &domain.Response{
		Body:        []byte(articleHTML),
		ContentType: "text/html",
		URL:         "https://docs.example.com/guide",
	})
	require.NoError(t, err)
	assert.Contains(t, page.Markdown, "Embeddings map text into a dense space")
	assert.NotContains(t, page.Markdown, "track()")
}

func TestPipeline_ConvertPassthrough(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantTitle   string
		wantText    string
	}{
		{"markdown", "text/markdown", "# Install\n\n\n\nRun it.   \n", "Install", "# Install\n\nRun it."},
		{"plain text", "text/plain", "line one\r\nline two\n", "", "line one\nline two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := NewPipeline(Options{}).Convert(context.Background(), &domain.Response{
				Body:        []byte(tt.body),
				ContentType: tt.contentType,
				URL:         "https://a.dev/doc",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, page.Title)
			assert.Equal(t, tt.wantText, page.Markdown)
		})
	}
}

func TestPipeline_ConvertCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPipeline(Options{}).Convert(ctx, &domain.Response{Body: []byte("<p>x</p>")})
	assert.ErrorIs(t, err, context.Canceled)
}
