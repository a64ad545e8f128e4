package utils

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Progress bar descriptions used by the pipeline
const (
	DescEmbedding = "Embedding"
	DescUpserting = "Upserting"
	DescScraping  = "Scraping"
)

// NewProgressBar creates a consistently styled progress bar.
// A negative total renders a spinner. When enabled is false the bar
// writes nowhere, so callers can drive it unconditionally.
func NewProgressBar(total int, description string, enabled bool) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
	}

	if !enabled {
		opts = append(opts, progressbar.OptionSetWriter(io.Discard))
	}

	if total < 0 {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	} else {
		opts = append(opts, progressbar.OptionShowIts())
	}

	return progressbar.NewOptions(total, opts...)
}
