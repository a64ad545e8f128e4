package git

import (
	"context"

	"github.com/go-git/go-git/v5"
)

// Cloner is the subset of go-git the Manager touches. Tests swap it for
// one that initialises local repositories.
type Cloner interface {
	Clone(ctx context.Context, dir string, opts *git.CloneOptions) (*git.Repository, error)
	Open(dir string) (*git.Repository, error)
}

type goGit struct{}

func (goGit) Clone(ctx context.Context, dir string, opts *git.CloneOptions) (*git.Repository, error) {
	return git.PlainCloneContext(ctx, dir, false, opts)
}

func (goGit) Open(dir string) (*git.Repository, error) {
	return git.PlainOpen(dir)
}
