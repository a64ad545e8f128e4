package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

// initRepo creates a repository with a single commit
func initRepo(t *testing.T, dir string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return repo
}

// fakeCloner records clone calls and initialises a local repository
// instead of contacting a remote
type fakeCloner struct {
	t        *testing.T
	cloneErr error
	calls    []*git.CloneOptions
}

func (f *fakeCloner) Clone(_ context.Context, path string, o *git.CloneOptions) (*git.Repository, error) {
	f.calls = append(f.calls, o)
	if f.cloneErr != nil {
		require.NoError(f.t, os.MkdirAll(path, 0o755))
		return nil, f.cloneErr
	}
	return initRepo(f.t, path), nil
}

func (f *fakeCloner) Open(path string) (*git.Repository, error) {
	return git.PlainOpen(path)
}

// TestExtractRepoName covers URL and path forms
func TestExtractRepoName(t *testing.T) {
	local := filepath.Join(t.TempDir(), "local-repo")
	require.NoError(t, os.MkdirAll(local, 0o755))

	tests := []struct {
		in   string
		want string
	}{
		{"https://github.com/user/repo.git", "repo"},
		{"https://github.com/user/repo", "repo"},
		{"git@github.com:user/my-project.git", "my-project"},
		{"https://gitlab.com/group/sub/tool", "tool"},
		{"/path/to/repo", "repo"},
		{local, "local-repo"},
		{local + "/", "local-repo"},
		{"repo.git", "repo"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRepoName(tt.in))
		})
	}
}

// TestIsGitRepo checks detection of repositories
func TestIsGitRepo(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsGitRepo(dir))
	assert.False(t, IsGitRepo(filepath.Join(dir, "missing")))

	initRepo(t, dir)
	assert.True(t, IsGitRepo(dir))
}

// TestManager_Clone clones into the work directory
func TestManager_Clone(t *testing.T) {
	work := t.TempDir()
	fake := &fakeCloner{t: t}
	m := NewManager(ManagerOptions{Cloner: fake, WorkDir: work, Shallow: true, Token: "secret"})

	info, err := m.CloneOrUpdate(context.Background(), "https://github.com/acme/widget.git", "")
	require.NoError(t, err)

	assert.Equal(t, "widget", info.Name)
	assert.Equal(t, filepath.Join(work, "widget"), info.Path)
	assert.Len(t, info.Commit, 40)
	assert.NotEmpty(t, info.Branch)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, 1, fake.calls[0].Depth)
	assert.NotNil(t, fake.calls[0].Auth)
}

// TestManager_CloneFailureCleansUp removes the partial checkout
func TestManager_CloneFailureCleansUp(t *testing.T) {
	work := t.TempDir()
	fake := &fakeCloner{t: t, cloneErr: errors.New("repository not found")}
	m := NewManager(ManagerOptions{Cloner: fake, WorkDir: work})

	_, err := m.CloneOrUpdate(context.Background(), "https://github.com/acme/missing", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository not found")
	assert.NoDirExists(t, filepath.Join(work, "missing"))
	assert.Nil(t, fake.calls[0].Auth)
}

// TestManager_UpdateExisting reuses an existing clone without remotes
func TestManager_UpdateExisting(t *testing.T) {
	target := filepath.Join(t.TempDir(), "existing")
	initRepo(t, target)

	fake := &fakeCloner{t: t}
	m := NewManager(ManagerOptions{Cloner: fake})

	info, err := m.CloneOrUpdate(context.Background(), "https://github.com/acme/existing", target)
	require.NoError(t, err)
	assert.Equal(t, target, info.Path)
	assert.Empty(t, fake.calls)
	assert.Len(t, info.Commit, 40)
}

// TestManager_PullFailureIsNotFatal keeps going when origin is unreachable
func TestManager_PullFailureIsNotFatal(t *testing.T) {
	target := filepath.Join(t.TempDir(), "withremote")
	repo := initRepo(t, target)
	_, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{filepath.Join(t.TempDir(), "gone")},
	})
	require.NoError(t, err)

	m := NewManager(ManagerOptions{})
	info, err := m.CloneOrUpdate(context.Background(), target, target)
	require.NoError(t, err)
	assert.Equal(t, "withremote", info.Name)
}

// TestManager_NotARepository rejects a plain directory
func TestManager_NotARepository(t *testing.T) {
	target := t.TempDir()
	m := NewManager(ManagerOptions{})

	_, err := m.CloneOrUpdate(context.Background(), "https://github.com/acme/thing", target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotGitRepository))
}

// TestManager_TargetDir joins the work dir and repo name
func TestManager_TargetDir(t *testing.T) {
	m := NewManager(ManagerOptions{WorkDir: "/srv/repos"})
	dir, err := m.TargetDir("https://github.com/acme/widget")
	require.NoError(t, err)
	assert.Equal(t, "/srv/repos/widget", dir)

	wd, err := os.Getwd()
	require.NoError(t, err)
	dir, err = NewManager(ManagerOptions{}).TargetDir("https://github.com/acme/widget")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "widget"), dir)
}
