// Package output writes ingestion reports to disk.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// Format is a report serialization format
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for report paths with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported report format (use .json, .yaml or .yml)")

// FormatFromPath picks the format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Writer serializes reports
type Writer struct {
	force  bool
	dryRun bool
}

// WriterOptions contains options for the writer
type WriterOptions struct {
	// Force overwrites an existing report
	Force  bool
	DryRun bool
}

// NewWriter creates a new report writer
func NewWriter(opts WriterOptions) *Writer {
	return &Writer{force: opts.Force, dryRun: opts.DryRun}
}

// WriteReport writes v to path as JSON or YAML depending on the extension
func (w *Writer) WriteReport(path string, v any) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if !w.force && utils.FileExists(path) {
		return fmt.Errorf("report %s already exists", path)
	}
	if w.dryRun {
		return nil
	}

	if err := utils.EnsureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, format, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes v to out in the given format
func Encode(out io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
