package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/git"
)

// reviewsDir is where review records live, relative to the git directory.
const reviewsDir = "discuss/reviews"

// ErrReviewNotOpen is returned when merging or closing a review that is already done.
var ErrReviewNotOpen = errors.New("review request is not open")

func (r *Repository) reviewsPath(ctx context.Context) (string, error) {
	gitDir, err := r.git.GitDir(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to locate git directory: %w", err)
	}
	return filepath.Join(gitDir, filepath.FromSlash(reviewsDir)), nil
}

// OpenReviewRequest records a review request and returns its number.
func (r *Repository) OpenReviewRequest(ctx context.Context, draft core.ReviewDraft) (string, error) {
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	for _, branch := range []string{draft.Head, draft.Base} {
		if _, err := r.git.ResolveBranch(ctx, branch); err != nil {
			return "", fmt.Errorf("%w: %w", core.ErrNotFound, err)
		}
	}

	ids, err := r.reviewIDs(ctx)
	if err != nil {
		return "", err
	}
	next := 1
	if len(ids) > 0 {
		next = ids[len(ids)-1] + 1
	}

	rr := core.ReviewRequest{
		ID:         strconv.Itoa(next),
		State:      core.ReviewOpen,
		HeadBranch: draft.Head,
		BaseBranch: draft.Base,
		Title:      draft.Title,
		Body:       draft.Body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.saveReview(ctx, rr); err != nil {
		return "", err
	}
	return rr.ID, nil
}

// GetReviewRequest loads a review record.
func (r *Repository) GetReviewRequest(ctx context.Context, id string) (*core.ReviewRequest, error) {
	dir, err := r.reviewsPath(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := strconv.Atoi(id); err != nil {
		return nil, fmt.Errorf("review %q: %w", id, core.ErrNotFound)
	}

	return readRecord(filepath.Join(dir, id+".yml"))
}

// ListReviewRequests returns every review record, oldest first.
func (r *Repository) ListReviewRequests(ctx context.Context) ([]core.ReviewRequest, error) {
	ids, err := r.reviewIDs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.ReviewRequest, 0, len(ids))
	for _, id := range ids {
		rr, err := r.GetReviewRequest(ctx, strconv.Itoa(id))
		if err != nil {
			return nil, err
		}
		out = append(out, *rr)
	}
	return out, nil
}

// MergeReviewRequest merges the head branch of an open review into its base.
//
// Workflow:
//  1. Collect the files the head branch changed since it forked.
//  2. Commit them on the base with both heads as parents.
//  3. Mirror them into the working tree if the base is checked out.
//  4. Mark the record merged.
func (r *Repository) MergeReviewRequest(ctx context.Context, id string) (*core.ReviewRequest, error) {
	rr, err := r.GetReviewRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if rr.State != core.ReviewOpen {
		return nil, fmt.Errorf("review %s is %s: %w", id, rr.State, ErrReviewNotOpen)
	}

	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	base, err := r.git.ResolveBranch(ctx, rr.BaseBranch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}
	head, err := r.git.ResolveBranch(ctx, rr.HeadBranch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}

	// 1. Changes
	paths, err := r.git.ChangedFiles(ctx, base, head)
	if err != nil {
		return nil, fmt.Errorf("failed to diff review %s: %w", id, err)
	}
	changes := make([]git.TreeChange, 0, len(paths))
	for _, p := range paths {
		mode, blob, err := r.git.LsTree(ctx, head, p)
		if err != nil {
			return nil, fmt.Errorf("review %s touches %s which cannot be merged: %w", id, p, err)
		}
		changes = append(changes, git.TreeChange{Path: p, Mode: mode, Blob: blob})
	}

	// 2. Merge commit
	message := fmt.Sprintf("Merge review #%s from %s\n\n%s", id, rr.HeadBranch, rr.Title)
	commit, err := r.git.CommitTree(ctx, rr.BaseBranch, message, []string{base, head}, changes...)
	if err != nil {
		return nil, fmt.Errorf("failed to merge review %s: %w", id, err)
	}

	// 3. Working tree
	if err := r.syncWorktree(ctx, rr.BaseBranch, commit, paths...); err != nil {
		return nil, err
	}

	// 4. Record
	rr.State = core.ReviewMerged
	rr.Merged = true
	if err := r.saveReview(ctx, *rr); err != nil {
		return nil, err
	}
	return rr, nil
}

// CloseReviewRequest marks an open review closed without merging it.
func (r *Repository) CloseReviewRequest(ctx context.Context, id string) error {
	rr, err := r.GetReviewRequest(ctx, id)
	if err != nil {
		return err
	}
	if rr.State != core.ReviewOpen {
		return fmt.Errorf("review %s is %s: %w", id, rr.State, ErrReviewNotOpen)
	}
	rr.State = core.ReviewClosed
	return r.saveReview(ctx, *rr)
}

func (r *Repository) saveReview(ctx context.Context, rr core.ReviewRequest) error {
	dir, err := r.reviewsPath(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create review directory: %w", err)
	}
	return writeRecord(filepath.Join(dir, rr.ID+".yml"), rr)
}

func (r *Repository) reviewIDs(ctx context.Context) ([]int, error) {
	dir, err := r.reviewsPath(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	var ids []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".yml")
		if !ok || e.IsDir() {
			continue
		}
		if n, err := strconv.Atoi(name); err == nil {
			ids = append(ids, n)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
