package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newRepo(t *testing.T) *Client {
	t.Helper()
	if !IsInstalled() {
		t.Skip("git not installed")
	}

	ctx := context.Background()
	client := NewClient(t.TempDir(), nil)
	if err := client.Init(ctx, "main"); err != nil {
		t.Fatalf("Failed to init: %v", err)
	}
	if err := client.Commit(ctx, "initial"); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return client
}

func TestClient_Lock(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, nil)

	unlock, err := client.Lock(context.Background())
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	lockPath := filepath.Join(tmpDir, ".discuss.lock")
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Error("Lock file not created")
	}

	// A second acquisition must give up once its context expires.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.Lock(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error while lock is held, got %v", err)
	}

	unlock()

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("Lock file not removed after unlock")
	}
}

func TestClient_Init(t *testing.T) {
	client := newRepo(t)

	if _, err := os.Stat(filepath.Join(client.WorkDir, ".git")); os.IsNotExist(err) {
		t.Error(".git directory not created")
	}
	if !client.IsRepo(context.Background()) {
		t.Error("IsRepo returned false for a fresh repository")
	}
	if got := client.CurrentBranch(context.Background()); got != "main" {
		t.Errorf("CurrentBranch = %q, want main", got)
	}
}

func TestClient_CommitTree(t *testing.T) {
	client := newRepo(t)
	ctx := context.Background()

	head, err := client.ResolveBranch(ctx, "main")
	if err != nil {
		t.Fatalf("ResolveBranch: %v", err)
	}

	commit, err := client.CommitTree(ctx, "main", "add entry", []string{head},
		TreeChange{Path: "data/a.yml", Content: []byte("name: a\n")})
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}

	newHead, _ := client.ResolveBranch(ctx, "main")
	if newHead != commit {
		t.Errorf("main = %s, want %s", newHead, commit)
	}

	data, err := client.ReadBlob(ctx, "main", "data/a.yml")
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(data) != "name: a\n" {
		t.Errorf("content = %q", data)
	}

	// The working tree is not touched.
	if _, err := os.Stat(filepath.Join(client.WorkDir, "data", "a.yml")); !os.IsNotExist(err) {
		t.Error("CommitTree wrote into the working tree")
	}

	// A stale parent loses the compare-and-swap.
	if _, err := client.CommitTree(ctx, "main", "stale", []string{head},
		TreeChange{Path: "data/b.yml", Content: []byte("x")}); err == nil {
		t.Error("expected stale parent to be rejected")
	}
}

func TestClient_Branches(t *testing.T) {
	client := newRepo(t)
	ctx := context.Background()

	base, _ := client.ResolveBranch(ctx, "main")
	if err := client.CreateBranch(ctx, "review", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := client.CreateBranch(ctx, "review", base); err == nil {
		t.Error("expected duplicate branch to fail")
	}

	if _, err := client.CommitTree(ctx, "review", "entry", []string{base},
		TreeChange{Path: "c/1.json", Content: []byte("{}")}); err != nil {
		t.Fatalf("CommitTree: %v", err)
	}

	changed, err := client.ChangedFiles(ctx, "main", "review")
	if err != nil {
		t.Fatalf("ChangedFiles: %v", err)
	}
	if len(changed) != 1 || changed[0] != "c/1.json" {
		t.Errorf("ChangedFiles = %v", changed)
	}

	mode, blob, err := client.LsTree(ctx, "review", "c/1.json")
	if err != nil || mode != "100644" || blob == "" {
		t.Errorf("LsTree = %q %q %v", mode, blob, err)
	}

	if err := client.DeleteBranch(ctx, "review"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if _, err := client.ResolveBranch(ctx, "review"); !errors.Is(err, ErrRefNotFound) {
		t.Errorf("expected ErrRefNotFound, got %v", err)
	}
}
