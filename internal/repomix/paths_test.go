package repomix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestExtractFilePaths covers tree reconstruction and filtering
func TestExtractFilePaths(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "nested tree",
			content: rawOutput,
			want: []string{
				"cmd/app/main.go",
				"internal/store/store.go",
				"internal/store/store_test.go",
				"go.mod",
			},
		},
		{
			name:    "stops at closing tag",
			content: "<directory_structure>\nmain.go\n</directory_structure>\n<files>\n<file path=\"x.go\">\nother.go\n</file>",
			want:    []string{"main.go"},
		},
		{
			name:    "skips code-like lines",
			content: "<directory_structure>\na.go\nx = call(y)\nfunc main() {\ntoo many words here.go\n</directory_structure>",
			want:    []string{"a.go"},
		},
		{
			name:    "lenient fallback for extensionless files",
			content: "<directory_structure>\nMakefile\nLICENSE\n</directory_structure>",
			want:    []string{"Makefile", "LICENSE"},
		},
		{
			name:    "no section",
			content: "just text",
			want:    nil,
		},
		{
			name:    "dedupes",
			content: "<directory_structure>\na.go\na.go\n</directory_structure>",
			want:    []string{"a.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFilePaths(tt.content))
		})
	}
}
