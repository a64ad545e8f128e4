package repomix

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

const (
	dirStructureOpen  = "<directory_structure>"
	dirStructureClose = "</directory_structure>"

	SummaryFile      = "repository_summary.txt"
	DirStructureFile = "directory_structure.txt"
	ErrorFile        = "error.txt"
)

var (
	fileSectionRe = regexp.MustCompile(`(?s)<file path="([^"]+)">(.*?)</file>`)
	urlRe         = regexp.MustCompile(`https?://[^\s<>"']+|www\.[^\s<>"']+\.[^\s<>"']+`)
)

// Parser reads repomix output files
type Parser struct {
	logger *utils.Logger
}

// NewParser creates a Parser
func NewParser(logger *utils.Logger) *Parser {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Parser{logger: logger.WithComponent("repomix")}
}

// xmlContent is the result of a token-level pass over repomix XML
type xmlContent struct {
	files []domain.Chunk
	text  string
}

// decodeXML walks the document, collecting <file path="..."> elements and
// all character data. A file body is the raw input between its tags, so
// markup inside it survives. Repomix does not escape file bodies, so a
// source that is not well-formed XML (a bare ampersand, an unclosed tag)
// makes this fail.
func decodeXML(data []byte, logger *utils.Logger) (*xmlContent, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		out       xmlContent
		all       strings.Builder
		filePath  string
		bodyStart int64
		depth     int // nesting inside the current <file>
	)

	for {
		tokStart := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
				continue
			}
			if t.Name.Local != "file" {
				continue
			}
			filePath = ""
			for _, attr := range t.Attr {
				if attr.Name.Local == "path" {
					filePath = attr.Value
				}
			}
			bodyStart = dec.InputOffset()
			depth = 1
		case xml.EndElement:
			if depth == 0 {
				continue
			}
			depth--
			if depth > 0 {
				continue
			}
			if filePath == "" {
				logger.Warn().Msg("Found file element without path attribute, skipping")
				continue
			}
			out.files = append(out.files, domain.Chunk{
				Text:       string(data[bodyStart:tokStart]),
				SourceType: domain.SourceRepository,
				FilePath:   filePath,
			})
		case xml.CharData:
			all.Write(t)
			all.WriteByte(' ')
		}
	}

	out.text = all.String()
	return &out, nil
}

// ParseOutput turns a repomix output file into repository chunks.
// A missing file is an error; any other failure is reported as a single
// error chunk so the pipeline can continue.
func (p *Parser) ParseOutput(path string) ([]domain.Chunk, error) {
	p.logger.Info().Str("path", path).Msg("Parsing Repomix output")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.logger.Error().Str("path", path).Msg("Repomix output file not found")
			return nil, fmt.Errorf("repomix output file not found: %w", err)
		}
		p.logger.Error().Err(err).Msg("Unexpected error parsing Repomix output")
		return []domain.Chunk{{
			Text:       fmt.Sprintf("Error parsing Repomix output: %v", err),
			SourceType: domain.SourceError,
			FilePath:   ErrorFile,
		}}, nil
	}

	doc, err := decodeXML(data, p.logger)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Could not parse as XML, using fallback method")
	} else if len(doc.files) > 0 {
		p.logger.Info().Int("chunks", len(doc.files)).Msg("Extracted content chunks from Repomix XML output")
		return doc.files, nil
	}

	chunks := parseFallback(string(data))
	p.logger.Info().Int("chunks", len(chunks)).Msg("Created content chunks using fallback method")
	return chunks, nil
}

// parseFallback extracts a summary chunk plus one chunk per file section
// using pattern matching.
func parseFallback(content string) []domain.Chunk {
	summary := content
	if i := strings.Index(content, dirStructureOpen); i >= 0 {
		summary = content[:i]
	}

	chunks := []domain.Chunk{{
		Text:       strings.TrimSpace(summary),
		SourceType: domain.SourceRepository,
		FilePath:   SummaryFile,
	}}

	for _, m := range fileSectionRe.FindAllStringSubmatch(content, -1) {
		chunks = append(chunks, domain.Chunk{
			Text:       strings.TrimSpace(m[2]),
			SourceType: domain.SourceRepository,
			FilePath:   m[1],
		})
	}

	if len(chunks) == 1 {
		if tree, ok := directorySection(content); ok {
			chunks = append(chunks, domain.Chunk{
				Text:       strings.TrimSpace(tree),
				SourceType: domain.SourceRepository,
				FilePath:   DirStructureFile,
			})
		}
	}
	return chunks
}

// ExtractURLs returns the unique URLs mentioned in a repomix output file,
// in the order they first appear. A missing file is an error; other
// failures yield an empty list.
func (p *Parser) ExtractURLs(path string) ([]string, error) {
	p.logger.Info().Str("path", path).Msg("Extracting URLs from Repomix output")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.logger.Error().Str("path", path).Msg("Repomix output file not found")
			return nil, fmt.Errorf("repomix output file not found: %w", err)
		}
		p.logger.Error().Err(err).Msg("Unexpected error extracting URLs, returning empty list")
		return []string{}, nil
	}

	text := string(data)
	if doc, err := decodeXML(data, p.logger); err != nil {
		p.logger.Warn().Err(err).Msg("Could not parse as XML, using raw file content")
	} else if strings.TrimSpace(doc.text) != "" {
		text = doc.text
	}

	urls := UniqueURLs(urlRe.FindAllString(text, -1))
	p.logger.Info().Int("urls", len(urls)).Msg("Extracted unique URLs from Repomix output")
	return urls, nil
}

// UniqueURLs removes exact duplicates, keeping first-seen order
func UniqueURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
