package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Repository drives the git CLI inside a single working tree
type Repository struct {
	logger       *zap.Logger
	repoURL      string
	localPath    string
	branch       string
	remote       string
	workspaceDir string
	gitUsername  string
	gitEmail     string
}

// RepositoryConfig contains configuration for git repository.
// When URL is empty the working tree at LocalPath is used as-is.
type RepositoryConfig struct {
	URL          string `yaml:"url"`
	Branch       string `yaml:"branch"`
	Remote       string `yaml:"remote"`
	LocalPath    string `yaml:"local_path"`
	WorkspaceDir string `yaml:"workspace_dir"`
	GitUsername  string `yaml:"git_username"`
	GitEmail     string `yaml:"git_email"`
}

func NewRepository(config RepositoryConfig, logger *zap.Logger) *Repository {
	localPath := config.LocalPath
	if config.URL != "" && localPath == "" {
		localPath = filepath.Join(config.WorkspaceDir, extractRepoName(config.URL))
	}
	if localPath == "" {
		localPath = "."
	}

	remote := config.Remote
	if remote == "" {
		remote = "origin"
	}

	return &Repository{
		logger:       logger,
		repoURL:      config.URL,
		localPath:    localPath,
		branch:       config.Branch,
		remote:       remote,
		workspaceDir: config.WorkspaceDir,
		gitUsername:  config.GitUsername,
		gitEmail:     config.GitEmail,
	}
}

// Initialize makes sure the working tree exists and is up to date.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.repoURL == "" {
		if !r.exists(ctx) {
			return fmt.Errorf("%s is not a git working tree", r.localPath)
		}
		return nil
	}

	if r.workspaceDir != "" {
		if err := os.MkdirAll(r.workspaceDir, 0755); err != nil {
			return fmt.Errorf("failed to create workspace directory: %w", err)
		}
	}

	if r.exists(ctx) {
		r.logger.Info("Repository exists locally, pulling latest changes",
			zap.String("path", r.localPath))
		return r.pull(ctx)
	}

	r.logger.Info("Repository not found locally, cloning",
		zap.String("url", r.repoURL),
		zap.String("path", r.localPath))
	return r.clone(ctx)
}

func (r *Repository) exists(ctx context.Context) bool {
	if _, err := os.Stat(r.localPath); err != nil {
		return false
	}
	_, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

func (r *Repository) clone(ctx context.Context) error {
	args := []string{"clone"}
	if r.branch != "" {
		args = append(args, "-b", r.branch)
	}
	args = append(args, r.repoURL, r.localPath)

	cmd := exec.CommandContext(ctx, "git", args...)
	r.prepare(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to clone repository: %s, output: %s", err, string(output))
	}

	r.logger.Info("Repository cloned successfully",
		zap.String("url", r.repoURL),
		zap.String("branch", r.branch),
		zap.String("path", r.localPath))
	return nil
}

func (r *Repository) pull(ctx context.Context) error {
	args := []string{"pull", "--ff-only", r.remote}
	if r.branch != "" {
		args = append(args, r.branch)
	}
	output, err := r.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("failed to pull repository: %w", err)
	}

	r.logger.Info("Repository pulled successfully",
		zap.String("branch", r.branch),
		zap.String("output", output))
	return nil
}

// Add stages files for commit
func (r *Repository) Add(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}

	args := append([]string{"add", "--"}, files...)
	if _, err := r.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to add files: %w", err)
	}

	r.logger.Debug("Files added to git", zap.Strings("files", files))
	return nil
}

// Remove stages the deletion of files. Paths git never tracked are ignored.
func (r *Repository) Remove(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}

	args := append([]string{"rm", "--cached", "--ignore-unmatch", "--quiet", "--"}, files...)
	if _, err := r.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to remove files: %w", err)
	}

	r.logger.Debug("Files removed from git index", zap.Strings("files", files))
	return nil
}

// ConfigureGitUser sets up git user configuration for the repository
func (r *Repository) ConfigureGitUser(ctx context.Context) error {
	if r.gitUsername == "" || r.gitEmail == "" {
		return nil
	}

	if _, err := r.run(ctx, "config", "user.name", r.gitUsername); err != nil {
		return fmt.Errorf("failed to set git user name: %w", err)
	}
	if _, err := r.run(ctx, "config", "user.email", r.gitEmail); err != nil {
		return fmt.Errorf("failed to set git user email: %w", err)
	}
	return nil
}

// Commit records the staged changes. An empty index is not an error.
func (r *Repository) Commit(ctx context.Context, message string) error {
	if err := r.ConfigureGitUser(ctx); err != nil {
		return fmt.Errorf("failed to configure git user: %w", err)
	}

	output, err := r.run(ctx, "commit", "-m", message)
	if err != nil {
		if strings.Contains(output, "nothing to commit") || strings.Contains(output, "nothing added to commit") {
			r.logger.Info("No changes to commit")
			return nil
		}
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Info("Committed changes", zap.String("message", message))
	return nil
}

// Push pushes commits to remote
func (r *Repository) Push(ctx context.Context) error {
	ref := r.branch
	if ref == "" {
		ref = "HEAD"
	}

	output, err := r.run(ctx, "push", r.remote, ref)
	if err != nil {
		return fmt.Errorf("failed to push: %w", err)
	}

	r.logger.Info("Pushed to remote",
		zap.String("remote", r.remote),
		zap.String("ref", ref),
		zap.String("output", output))
	return nil
}

// GetLastCommitHash returns the hash of the last commit
func (r *Repository) GetLastCommitHash(ctx context.Context) (string, error) {
	output, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get commit hash: %w", err)
	}
	return strings.TrimSpace(output), nil
}

// HasChanges checks if there are any uncommitted changes
func (r *Repository) HasChanges(ctx context.Context) (bool, error) {
	output, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to get git status: %w", err)
	}
	return strings.TrimSpace(output) != "", nil
}

// RelativePath converts path into a path relative to the working tree root
func (r *Repository) RelativePath(path string) (string, error) {
	root, err := filepath.Abs(r.localPath)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the working tree %s", path, r.localPath)
	}
	return filepath.ToSlash(rel), nil
}

// GetLocalPath returns the local path of the repository
func (r *Repository) GetLocalPath() string {
	return r.localPath
}

func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.localPath
	r.prepare(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(output), fmt.Errorf("git %s: %s, output: %s", args[0], err, strings.TrimSpace(string(output)))
		}
		return string(output), fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(output), nil
}

// prepare sets up the SSH environment for commands talking to an SSH remote
func (r *Repository) prepare(cmd *exec.Cmd) {
	if !isSSHURL(r.repoURL) {
		return
	}
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND=ssh -o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no")
}

func extractRepoName(url string) string {
	url = strings.TrimSuffix(url, ".git")

	// git@github.com:user/repo
	if strings.Contains(url, ":") && strings.Contains(url, "@") && !strings.Contains(url, "://") {
		parts := strings.Split(url, ":")
		url = parts[len(parts)-1]
	}

	parts := strings.Split(url, "/")
	if name := parts[len(parts)-1]; name != "" {
		return name
	}
	return "repo"
}

func isSSHURL(url string) bool {
	return strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")
}
