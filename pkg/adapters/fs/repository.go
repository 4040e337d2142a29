// Package fs implements the version-control gateway on local git repositories.
//
// Entries are committed with git plumbing, so writes never depend on which
// branch is checked out. When the target branch is checked out in a working
// tree, the new file is also placed there and staged so the tree stays clean.
// Review requests are YAML records kept inside the git directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/git"
)

// Repository implements core.Gateway on one local git repository.
type Repository struct {
	Path   string
	git    *git.Client
	config Config
}

// Config holds the configuration for a local repository.
type Config struct {
	Path string
	// AutoInit creates the directory and the repository when missing.
	AutoInit bool
	// MustExist fails instead of creating a missing directory.
	MustExist bool
	// InitialBranch names the first branch of auto-initialized repositories.
	InitialBranch string
	Identity      git.Identity
	Logger        *slog.Logger
}

// NewRepository creates a new repository gateway.
func NewRepository(config Config) *Repository {
	client := git.NewClient(config.Path, config.Logger)
	if config.Identity.Name != "" {
		client.Identity = config.Identity
	}
	return &Repository{
		Path:   config.Path,
		git:    client,
		config: config,
	}
}

// Initialize performs the necessary setup for the repository (mkdir, git init).
func (r *Repository) Initialize(ctx context.Context) error {
	// 1. Directory Initialization
	info, err := os.Stat(r.Path)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("repository path is not a directory: %s", r.Path)
	case os.IsNotExist(err) && (r.config.MustExist || !r.config.AutoInit):
		return fmt.Errorf("repository path does not exist: %s: %w", r.Path, core.ErrNotFound)
	case os.IsNotExist(err):
		if err := os.MkdirAll(r.Path, 0755); err != nil {
			return fmt.Errorf("failed to create repository directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to stat repository: %w", err)
	}

	// 2. Git Initialization
	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}
	if r.git.IsRepo(ctx) {
		return nil
	}
	if !r.config.AutoInit {
		return fmt.Errorf("path is not a git repository: %s", r.Path)
	}

	branch := r.config.InitialBranch
	if branch == "" {
		branch = "main"
	}
	if err := r.git.Init(ctx, branch); err != nil {
		return fmt.Errorf("failed to git init: %w", err)
	}
	if err := r.git.Commit(ctx, "Initialize repository"); err != nil {
		return fmt.Errorf("failed to create initial commit: %w", err)
	}
	if r.config.Logger != nil {
		r.config.Logger.Info("initialized repository", "path", r.Path, "branch", branch)
	}
	return nil
}

// ReadFile returns the content of path on ref.
func (r *Repository) ReadFile(ctx context.Context, path, ref string) ([]byte, error) {
	data, err := r.git.ReadBlob(ctx, ref, path)
	if errors.Is(err, git.ErrRefNotFound) {
		return nil, fmt.Errorf("%s at %s: %w", path, ref, core.ErrNotFound)
	}
	return data, err
}

// WriteFile commits a new file to branch.
//
// Workflow:
//  1. Acquire the repository lock.
//  2. Refuse paths that already exist on the branch.
//  3. Commit the file on top of the branch head.
//  4. Mirror the file into the working tree if branch is checked out.
func (r *Repository) WriteFile(ctx context.Context, path string, content []byte, branch, message string) error {
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	head, err := r.git.ResolveBranch(ctx, branch)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}
	if r.git.Exists(ctx, head, path) {
		return fmt.Errorf("%s on %s: %w", path, branch, core.ErrFileExists)
	}

	commit, err := r.git.CommitTree(ctx, branch, message, []string{head}, git.TreeChange{Path: path, Content: content})
	if err != nil {
		return fmt.Errorf("failed to commit %s: %w", path, err)
	}

	if err := r.syncWorktree(ctx, branch, commit, path); err != nil {
		return err
	}

	if r.config.Logger != nil {
		r.config.Logger.Debug("committed file", "path", path, "branch", branch, "commit", commit)
	}
	return nil
}

// syncWorktree places committed paths into a checked-out working tree and
// points their index entries at the committed blobs.
func (r *Repository) syncWorktree(ctx context.Context, branch, commit string, paths ...string) error {
	if bare, err := r.git.IsBare(ctx); err != nil || bare {
		return err
	}
	if r.git.CurrentBranch(ctx) != branch {
		return nil
	}

	for _, path := range paths {
		mode, blob, err := r.git.LsTree(ctx, commit, path)
		if err != nil {
			return fmt.Errorf("failed to locate %s: %w", path, err)
		}
		data, err := r.git.ReadBlob(ctx, commit, path)
		if err != nil {
			return err
		}

		fullPath := filepath.Join(r.Path, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return fmt.Errorf("failed to create directories: %w", err)
		}
		if err := writeFileAtomic(fullPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		if err := r.git.StagePath(ctx, mode, blob, path); err != nil {
			return fmt.Errorf("failed to stage %s: %w", path, err)
		}
	}
	return nil
}

// CreateBranch creates name at fromSHA.
func (r *Repository) CreateBranch(ctx context.Context, name, fromSHA string) error {
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	return r.git.CreateBranch(ctx, name, fromSHA)
}

// HeadCommit returns the commit branch points at.
func (r *Repository) HeadCommit(ctx context.Context, branch string) (string, error) {
	sha, err := r.git.ResolveBranch(ctx, branch)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}
	return sha, nil
}

// DeleteBranch removes a branch. Deleting the checked-out branch fails.
func (r *Repository) DeleteBranch(ctx context.Context, name string) error {
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	return r.git.DeleteBranch(ctx, name)
}

var (
	_ core.Gateway       = (*Repository)(nil)
	_ core.BranchDeleter = (*Repository)(nil)
)
