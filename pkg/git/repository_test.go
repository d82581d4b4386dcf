package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	cmd := exec.Command("git", "init", "-q", dir)
	require.NoError(t, cmd.Run())

	return NewRepository(RepositoryConfig{
		LocalPath:   dir,
		GitUsername: "postpone",
		GitEmail:    "postpone@example.com",
	}, zap.NewNop())
}

func TestRepositoryCommitAddAndRemove(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	require.NoError(t, repo.Initialize(ctx))

	pending := filepath.Join(repo.GetLocalPath(), "schedules", "a.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(pending), 0755))
	require.NoError(t, os.WriteFile(pending, []byte(`{"status":"pending"}`), 0644))

	require.NoError(t, repo.Add(ctx, "schedules/a.json"))
	require.NoError(t, repo.Commit(ctx, "add a"))
	first, err := repo.GetLastCommitHash(ctx)
	require.NoError(t, err)

	archived := filepath.Join(repo.GetLocalPath(), "schedules", "processed", "a.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(archived), 0755))
	require.NoError(t, os.WriteFile(archived, []byte(`{"status":"processed"}`), 0644))
	require.NoError(t, os.Remove(pending))

	require.NoError(t, repo.Add(ctx, "schedules/processed/a.json"))
	require.NoError(t, repo.Remove(ctx, "schedules/a.json", "schedules/never-tracked.json"))
	require.NoError(t, repo.Commit(ctx, "archive a"))

	second, err := repo.GetLastCommitHash(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	dirty, err := repo.HasChanges(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestRepositoryCommitWithNothingStaged(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	seed := filepath.Join(repo.GetLocalPath(), "README")
	require.NoError(t, os.WriteFile(seed, []byte("seed"), 0644))
	require.NoError(t, repo.Add(ctx, "README"))
	require.NoError(t, repo.Commit(ctx, "seed"))

	assert.NoError(t, repo.Commit(ctx, "empty"))
}

func TestInitializeRejectsPlainDirectory(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	// A fresh temp dir outside any repository.
	repo := NewRepository(RepositoryConfig{LocalPath: t.TempDir()}, zap.NewNop())
	err := repo.Initialize(context.Background())
	if err == nil {
		t.Skip("temp directory is nested inside a git working tree")
	}
	assert.Contains(t, err.Error(), "not a git working tree")
}

func TestRelativePath(t *testing.T) {
	root := t.TempDir()
	repo := NewRepository(RepositoryConfig{LocalPath: root}, zap.NewNop())

	rel, err := repo.RelativePath(filepath.Join(root, "schedules", "processed", "a.json"))
	require.NoError(t, err)
	assert.Equal(t, "schedules/processed/a.json", rel)

	_, err = repo.RelativePath(filepath.Dir(root))
	assert.Error(t, err)
}

func TestExtractRepoName(t *testing.T) {
	assert.Equal(t, "schedules", extractRepoName("git@github.com:acme/schedules.git"))
	assert.Equal(t, "schedules", extractRepoName("https://github.com/acme/schedules.git"))
	assert.Equal(t, "schedules", extractRepoName("ssh://git@github.com/acme/schedules"))
}
