package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrRefNotFound is returned when a branch or revision does not resolve.
var ErrRefNotFound = errors.New("ref not found")

// Identity is the author and committer recorded on commits.
type Identity struct {
	Name  string
	Email string
}

// DefaultIdentity signs commits when the caller does not provide one.
var DefaultIdentity = Identity{Name: "discuss", Email: "discuss@localhost"}

// Client wraps git command execution with a global file-based lock for process safety.
type Client struct {
	WorkDir  string
	Logger   *slog.Logger
	Identity Identity
	lockPath string
}

// NewClient creates a new git client for the given working directory.
func NewClient(workDir string, logger *slog.Logger) *Client {
	return &Client{
		WorkDir:  workDir,
		Logger:   logger,
		Identity: DefaultIdentity,
		lockPath: ".discuss.lock",
	}
}

// IsInstalled reports whether a git binary is on PATH.
func IsInstalled() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Lock acquires a file-based lock. It blocks until the lock is acquired or ctx is done.
func (c *Client) Lock(ctx context.Context) (func(), error) {
	fullLockPath := filepath.Join(c.WorkDir, c.lockPath)

	for {
		f, err := os.OpenFile(fullLockPath, os.O_CREATE|os.O_EXCL, 0666)
		if err == nil {
			f.Close()
			return func() {
				os.Remove(fullLockPath)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock: %w", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Run executes a raw git command in the working directory.
// NOTE: It does NOT acquire the lock automatically. The caller must manage transaction safety via Client.Lock().
func (c *Client) Run(ctx context.Context, args ...string) (string, error) {
	return c.RunWithInput(ctx, nil, nil, args...)
}

// RunWithInput executes git with extra environment variables and stdin.
func (c *Client) RunWithInput(ctx context.Context, env []string, stdin []byte, args ...string) (string, error) {
	if c.Logger != nil {
		c.Logger.Debug("executing git", "args", args, "dir", c.WorkDir)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.WorkDir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME="+c.Identity.Name,
		"GIT_AUTHOR_EMAIL="+c.Identity.Email,
		"GIT_COMMITTER_NAME="+c.Identity.Name,
		"GIT_COMMITTER_EMAIL="+c.Identity.Email,
	)
	cmd.Env = append(cmd.Env, env...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("git %s failed: %w\nOutput: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Init initializes a new git repository if one doesn't exist.
func (c *Client) Init(ctx context.Context, initialBranch string) error {
	args := []string{"init", "--quiet"}
	if initialBranch != "" {
		args = append(args, "--initial-branch="+initialBranch)
	}
	_, err := c.Run(ctx, args...)
	return err
}

// IsRepo reports whether WorkDir is inside a git repository.
func (c *Client) IsRepo(ctx context.Context) bool {
	_, err := c.Run(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// GitDir returns the absolute path of the repository's git directory.
func (c *Client) GitDir(ctx context.Context) (string, error) {
	return c.Run(ctx, "rev-parse", "--absolute-git-dir")
}

// IsBare reports whether the repository has no working tree.
func (c *Client) IsBare(ctx context.Context) (bool, error) {
	out, err := c.Run(ctx, "rev-parse", "--is-bare-repository")
	if err != nil {
		return false, err
	}
	return out == "true", nil
}

// CurrentBranch returns the branch HEAD points at, or "" when detached.
func (c *Client) CurrentBranch(ctx context.Context) string {
	out, err := c.Run(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		return ""
	}
	return out
}

// Commit records an empty commit on the current branch.
func (c *Client) Commit(ctx context.Context, msg string) error {
	_, err := c.Run(ctx, "commit", "--quiet", "--allow-empty", "-m", msg)
	return err
}

// Status returns the porcelain status of the repo.
func (c *Client) Status(ctx context.Context) (string, error) {
	return c.Run(ctx, "status", "--porcelain")
}

// ResolveBranch returns the commit a local branch points at.
func (c *Client) ResolveBranch(ctx context.Context, branch string) (string, error) {
	out, err := c.Run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch+"^{commit}")
	if err != nil || out == "" {
		return "", fmt.Errorf("branch %s: %w", branch, ErrRefNotFound)
	}
	return out, nil
}

// Exists reports whether path exists in the tree of rev.
func (c *Client) Exists(ctx context.Context, rev, path string) bool {
	_, err := c.Run(ctx, "cat-file", "-e", rev+":"+path)
	return err == nil
}

// ReadBlob returns the content of path at rev.
func (c *Client) ReadBlob(ctx context.Context, rev, path string) ([]byte, error) {
	if !c.Exists(ctx, rev, path) {
		return nil, fmt.Errorf("%s at %s: %w", path, rev, ErrRefNotFound)
	}

	cmd := exec.CommandContext(ctx, "git", "cat-file", "blob", rev+":"+path)
	cmd.Dir = c.WorkDir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git cat-file failed: %w", err)
	}
	return out, nil
}

// CreateBranch points a new branch at sha. It fails if the branch exists.
func (c *Client) CreateBranch(ctx context.Context, name, sha string) error {
	_, err := c.Run(ctx, "branch", "--no-track", name, sha)
	return err
}

// DeleteBranch removes a local branch.
func (c *Client) DeleteBranch(ctx context.Context, name string) error {
	_, err := c.Run(ctx, "branch", "-D", name)
	return err
}

// ChangedFiles lists the paths head changed since it forked from base.
func (c *Client) ChangedFiles(ctx context.Context, base, head string) ([]string, error) {
	out, err := c.Run(ctx, "diff", "--name-only", "--no-renames", base+"..."+head)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// TreeChange stages one path in a commit built by CommitTree.
type TreeChange struct {
	Path string
	// Content is written as a new blob. Ignored when Blob is set.
	Content []byte
	// Blob reuses an existing object id.
	Blob string
	// Mode defaults to 100644.
	Mode string
}

// CommitTree builds a commit on top of parents[0] with changes applied to its
// tree, then moves branch to it if branch still points at parents[0]. The
// working tree and the repository index are left untouched.
//
// Workflow:
//  1. Stage the parent tree in a throwaway index.
//  2. Write blobs and update the index entries.
//  3. Write the tree and the commit.
//  4. Compare-and-swap the branch ref.
func (c *Client) CommitTree(ctx context.Context, branch, message string, parents []string, changes ...TreeChange) (string, error) {
	if len(parents) == 0 {
		return "", errors.New("commit needs at least one parent")
	}

	index, err := os.CreateTemp("", "discuss-index-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp index: %w", err)
	}
	indexPath := index.Name()
	index.Close()
	os.Remove(indexPath)
	defer os.Remove(indexPath)
	env := []string{"GIT_INDEX_FILE=" + indexPath}

	// 1. Parent tree
	if _, err := c.RunWithInput(ctx, env, nil, "read-tree", parents[0]); err != nil {
		return "", err
	}

	// 2. Blobs
	for _, ch := range changes {
		blob := ch.Blob
		if blob == "" {
			if blob, err = c.RunWithInput(ctx, nil, ch.Content, "hash-object", "-w", "--stdin"); err != nil {
				return "", err
			}
		}
		mode := ch.Mode
		if mode == "" {
			mode = "100644"
		}
		if _, err := c.RunWithInput(ctx, env, nil, "update-index", "--add", "--cacheinfo", mode+","+blob+","+ch.Path); err != nil {
			return "", err
		}
	}

	// 3. Tree and commit
	tree, err := c.RunWithInput(ctx, env, nil, "write-tree")
	if err != nil {
		return "", err
	}
	args := []string{"commit-tree", tree, "-m", message}
	for _, p := range parents {
		args = append(args, "-p", p)
	}
	commit, err := c.Run(ctx, args...)
	if err != nil {
		return "", err
	}

	// 4. Move the branch
	if _, err := c.Run(ctx, "update-ref", "-m", message, "refs/heads/"+branch, commit, parents[0]); err != nil {
		return "", err
	}
	return commit, nil
}

// LsTree returns the mode and object id of path at rev.
func (c *Client) LsTree(ctx context.Context, rev, path string) (mode, blob string, err error) {
	out, err := c.Run(ctx, "ls-tree", rev, "--", path)
	if err != nil {
		return "", "", err
	}
	// <mode> SP <type> SP <object> TAB <file>
	meta, _, ok := strings.Cut(out, "\t")
	fields := strings.Fields(meta)
	if !ok || len(fields) != 3 {
		return "", "", fmt.Errorf("%s at %s: %w", path, rev, ErrRefNotFound)
	}
	return fields[0], fields[2], nil
}

// StagePath points the repository index entry of path at blob without
// touching other entries.
func (c *Client) StagePath(ctx context.Context, mode, blob, path string) error {
	_, err := c.Run(ctx, "update-index", "--add", "--cacheinfo", mode+","+blob+","+path)
	return err
}
