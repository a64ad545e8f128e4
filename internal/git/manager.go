package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

var repoNameRe = regexp.MustCompile(`/([^/]+?)(?:\.git)?$`)

// ExtractRepoName returns the repository name for a URL or local path.
//
//	https://github.com/user/repo.git -> repo
//	https://github.com/user/repo     -> repo
//	/path/to/repo                    -> repo
func ExtractRepoName(repoURL string) string {
	if !isRemoteURL(repoURL) {
		if _, err := os.Stat(repoURL); err == nil {
			return filepath.Base(filepath.Clean(repoURL))
		}
	}

	if m := repoNameRe.FindStringSubmatch(repoURL); m != nil {
		return m[1]
	}

	parts := strings.Split(strings.TrimRight(repoURL, "/"), "/")
	return strings.ReplaceAll(parts[len(parts)-1], ".git", "")
}

// IsGitRepo reports whether dir can be opened as a git repository
func IsGitRepo(dir string) bool {
	_, err := git.PlainOpen(dir)
	return err == nil
}

func isRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ManagerOptions configures a Manager
type ManagerOptions struct {
	Cloner  Cloner
	WorkDir string // parent directory for clones; defaults to the cwd
	Shallow bool
	Token   string // sent as basic auth for private https remotes
	Logger  *utils.Logger
}

// Manager clones repositories or brings existing clones up to date
type Manager struct {
	cloner  Cloner
	workDir string
	shallow bool
	token   string
	logger  *utils.Logger
}

// NewManager creates a Manager
func NewManager(opts ManagerOptions) *Manager {
	cloner := opts.Cloner
	if cloner == nil {
		cloner = goGit{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Manager{
		cloner:  cloner,
		workDir: opts.WorkDir,
		shallow: opts.Shallow,
		token:   opts.Token,
		logger:  logger.WithComponent("git"),
	}
}

// TargetDir returns the default checkout directory for a repository
func (m *Manager) TargetDir(repoURL string) (string, error) {
	base := m.workDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		base = wd
	}
	return filepath.Join(utils.ExpandPath(base), ExtractRepoName(repoURL)), nil
}

// CloneOrUpdate clones repoURL into targetDir, or pulls when targetDir is
// already a clone. An empty targetDir means TargetDir(repoURL).
func (m *Manager) CloneOrUpdate(ctx context.Context, repoURL, targetDir string) (*domain.RepoInfo, error) {
	if targetDir == "" {
		dir, err := m.TargetDir(repoURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve target directory: %w", err)
		}
		targetDir = dir
	}

	m.logger.Info().Str("path", targetDir).Msg("Repository target directory")

	var repo *git.Repository
	if _, err := os.Stat(targetDir); err == nil {
		existing, openErr := m.cloner.Open(targetDir)
		if openErr != nil {
			m.logger.Error().Str("path", targetDir).Msg("Directory exists but is not a Git repository")
			return nil, fmt.Errorf("%s: %w", targetDir, domain.ErrNotGitRepository)
		}
		m.logger.Info().Str("path", targetDir).Msg("Updating existing repository")
		m.update(ctx, existing, repoURL)
		repo = existing
	} else {
		cloned, err := m.clone(ctx, repoURL, targetDir)
		if err != nil {
			return nil, err
		}
		repo = cloned
	}

	info := &domain.RepoInfo{
		Name: ExtractRepoName(repoURL),
		URL:  repoURL,
		Path: targetDir,
	}
	if head, err := repo.Head(); err == nil {
		info.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
	}
	return info, nil
}

func (m *Manager) clone(ctx context.Context, repoURL, targetDir string) (*git.Repository, error) {
	m.logger.Info().Str("url", repoURL).Str("path", targetDir).Msg("Cloning repository")

	if err := os.MkdirAll(filepath.Dir(targetDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	opts := &git.CloneOptions{URL: repoURL}
	if m.shallow {
		opts.Depth = 1
	}
	if auth := m.auth(repoURL); auth != nil {
		opts.Auth = auth
	}

	repo, err := m.cloner.Clone(ctx, targetDir, opts)
	if err != nil {
		m.logger.Error().Err(err).Str("url", repoURL).Msg("Error cloning repository")
		// go-git leaves a partial directory behind on failure
		_ = os.RemoveAll(targetDir)
		return nil, fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}
	return repo, nil
}

// update pulls from origin. Pull failures are logged and ignored so a
// stale checkout can still be ingested.
func (m *Manager) update(ctx context.Context, repo *git.Repository, repoURL string) {
	remotes, err := repo.Remotes()
	if err != nil || len(remotes) == 0 {
		m.logger.Info().Msg("Repository has no remotes, skipping pull")
		return
	}

	if isRemoteURL(repoURL) {
		urls := remotes[0].Config().URLs
		if len(urls) > 0 && urls[0] != repoURL && urls[0] != repoURL+".git" {
			m.logger.Warn().Str("origin", urls[0]).Str("url", repoURL).Msg("Remote URL mismatch")
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Error during pull, continuing anyway")
		return
	}

	m.logger.Info().Msg("Pulling latest changes")
	opts := &git.PullOptions{RemoteName: "origin"}
	if urls := remotes[0].Config().URLs; len(urls) > 0 {
		if auth := m.auth(urls[0]); auth != nil {
			opts.Auth = auth
		}
	}
	err = wt.PullContext(ctx, opts)
	switch {
	case err == nil:
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		m.logger.Debug().Msg("Repository already up to date")
	default:
		m.logger.Warn().Err(err).Msg("Error during pull, continuing anyway")
	}
}

func (m *Manager) auth(remote string) transport.AuthMethod {
	if m.token == "" || !strings.HasPrefix(remote, "https://") {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "token",
		Password: m.token,
	}
}
