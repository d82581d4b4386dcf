package durable

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Repository is the part of pkg/git the git log needs
type Repository interface {
	Add(ctx context.Context, files ...string) error
	Remove(ctx context.Context, files ...string) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
	RelativePath(path string) (string, error)
}

// GitLog stages, commits and optionally pushes every change as one commit
type GitLog struct {
	mu     sync.Mutex
	repo   Repository
	root   string
	push   bool
	logger *zap.Logger
}

func NewGitLog(repo Repository, root string, push bool, logger *zap.Logger) *GitLog {
	return &GitLog{
		repo:   repo,
		root:   root,
		push:   push,
		logger: logger,
	}
}

func (g *GitLog) Commit(ctx context.Context, change Change) error {
	if change.Empty() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	added, err := g.repoPaths(change.Added)
	if err != nil {
		return &CommitError{Backend: BackendGit, Err: err}
	}
	removed, err := g.repoPaths(change.Removed)
	if err != nil {
		return &CommitError{Backend: BackendGit, Err: err}
	}

	if err := g.repo.Add(ctx, added...); err != nil {
		return &CommitError{Backend: BackendGit, Err: err}
	}
	if err := g.repo.Remove(ctx, removed...); err != nil {
		return &CommitError{Backend: BackendGit, Err: err}
	}
	if err := g.repo.Commit(ctx, change.Message); err != nil {
		return &CommitError{Backend: BackendGit, Err: err}
	}

	if g.push {
		if err := g.repo.Push(ctx); err != nil {
			return &CommitError{Backend: BackendGit, Err: err}
		}
	}

	g.logger.Debug("Change committed to git",
		zap.Strings("added", added),
		zap.Strings("removed", removed),
		zap.Bool("pushed", g.push))
	return nil
}

func (g *GitLog) repoPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := g.repo.RelativePath(filepath.Join(g.root, p))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		out = append(out, rel)
	}
	return out, nil
}
