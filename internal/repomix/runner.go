package repomix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// DefaultOutputFile is the output name used inside the repository
const DefaultOutputFile = "repomix-output.xml"

// execCommandContext is replaced in tests
var execCommandContext = exec.CommandContext

// RunnerOptions configures a Runner
type RunnerOptions struct {
	Binary  string
	Timeout time.Duration
	// Ignore holds extra glob patterns passed to --ignore
	Ignore []string
	Logger *utils.Logger
}

// Runner executes the repomix CLI
type Runner struct {
	binary  string
	timeout time.Duration
	ignore  []string
	logger  *utils.Logger
}

// NewRunner creates a Runner
func NewRunner(opts RunnerOptions) *Runner {
	binary := opts.Binary
	if binary == "" {
		binary = "repomix"
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Runner{
		binary:  binary,
		timeout: opts.Timeout,
		ignore:  opts.Ignore,
		logger:  logger.WithComponent("repomix"),
	}
}

// CheckInstalled reports whether `repomix --version` exits successfully
func (r *Runner) CheckInstalled(ctx context.Context) bool {
	cmd := execCommandContext(ctx, r.binary, "--version")
	return cmd.Run() == nil
}

// Version returns the trimmed output of `repomix --version`
func (r *Runner) Version(ctx context.Context) (string, error) {
	out, err := execCommandContext(ctx, r.binary, "--version").Output()
	if err != nil {
		return "", domain.ErrRepomixNotInstalled
	}
	return strings.TrimSpace(string(out)), nil
}

// Execute packs the repository at repoPath into outputFile and returns
// the output path. An empty outputFile writes to DefaultOutputFile inside
// the repository.
func (r *Runner) Execute(ctx context.Context, repoPath, outputFile string) (string, error) {
	if !r.CheckInstalled(ctx) {
		r.logger.Error().Msg("Repomix is not installed or not available in PATH")
		return "", domain.ErrRepomixNotInstalled
	}

	if outputFile == "" {
		outputFile = DefaultOutputFile
	}
	if !filepath.IsAbs(outputFile) {
		outputFile = filepath.Join(repoPath, outputFile)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.Info().
		Str("repo", repoPath).
		Str("output", outputFile).
		Msg("Executing Repomix")

	var stdout, stderr bytes.Buffer
	args := []string{"--output", outputFile}
	if len(r.ignore) > 0 {
		args = append(args, "--ignore", strings.Join(r.ignore, ","))
	}
	cmd := execCommandContext(ctx, r.binary, args...)
	cmd.Dir = repoPath
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("repomix timed out after %s: %w", r.timeout, domain.ErrTimeout)
		}
		r.logger.Error().Err(err).Str("stderr", stderr.String()).Msg("Error executing Repomix")
		return "", fmt.Errorf("repomix failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	r.logger.Info().Msg("Repomix execution completed successfully")
	r.logger.Debug().Str("stdout", stdout.String()).Msg("Repomix output")
	return outputFile, nil
}
