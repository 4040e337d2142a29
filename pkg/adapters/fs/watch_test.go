package fs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/git"
)

func waitWatching(t *testing.T, c *Connector) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Watching() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("watch did not start")
}

func openReview(t *testing.T, ctx context.Context, repo *Repository) string {
	t.Helper()
	base, err := repo.HeadCommit(ctx, "main")
	if err != nil {
		t.Fatalf("HeadCommit failed: %v", err)
	}
	if err := repo.CreateBranch(ctx, "discuss_abc", base); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	if err := repo.WriteFile(ctx, "c/abc.json", []byte("{}"), "discuss_abc", "Add entry"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	id, err := repo.OpenReviewRequest(ctx, core.ReviewDraft{Title: "Add entry", Head: "discuss_abc", Base: "main"})
	if err != nil {
		t.Fatalf("OpenReviewRequest failed: %v", err)
	}
	return id
}

func TestWatchReviews(t *testing.T) {
	if !git.IsInstalled() {
		t.Skip("git not installed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewConnector(t.TempDir(), Config{AutoInit: true, InitialBranch: "main"})
	params := core.Parameters{Username: "jane", Repository: "blog"}

	// An existing repository with an open review is found by the scan.
	repo, err := c.Repository(ctx, params)
	if err != nil {
		t.Fatalf("Repository failed: %v", err)
	}
	id := openReview(t, ctx, repo)

	events := make(chan ReviewEvent, 8)
	done := make(chan error, 1)
	go func() { done <- c.WatchReviews(ctx, events) }()
	waitWatching(t, c)

	if err := c.WatchReviews(ctx, events); err != ErrAlreadyWatching {
		t.Errorf("expected ErrAlreadyWatching, got %v", err)
	}

	if _, err := repo.MergeReviewRequest(ctx, id); err != nil {
		t.Fatalf("MergeReviewRequest failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Review.ID != id || !ev.Review.Merged {
			t.Errorf("unexpected review in event: %+v", ev.Review)
		}
		if ev.Parameters.Slug() != "jane/blog" || ev.Parameters.Service != "fs" || ev.Parameters.Branch != "main" {
			t.Errorf("unexpected parameters: %+v", ev.Parameters)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event for merged review")
	}

	// A repository connected during the watch is added.
	other, err := c.Repository(ctx, core.Parameters{Username: "jane", Repository: "notes"})
	if err != nil {
		t.Fatalf("Repository failed: %v", err)
	}
	openReview(t, ctx, other)

	select {
	case ev := <-events:
		if ev.Parameters.Repository != "notes" || ev.Review.State != core.ReviewOpen {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event for repository connected during watch")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("WatchReviews returned %v", err)
	}
}

func TestDebouncer(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	for range 5 {
		d.add("k", func() { calls.Add(1) })
	}
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}

	d.add("k", func() { calls.Add(1) })
	d.stop()
	d.add("k", func() { calls.Add(1) })
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("expected pending and late calls to be dropped, got %d", got)
	}
}
