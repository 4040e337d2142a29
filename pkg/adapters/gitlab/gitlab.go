// Package gitlab implements the version-control gateway on the GitLab REST API.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	gogitlab "gitlab.com/gitlab-org/api/client-go"
)

// Connector scopes a GitLab client to the project named by the parameters.
type Connector struct {
	client *gogitlab.Client
}

// NewConnector creates a connector authenticated with token. baseURL is the
// instance root, e.g. https://gitlab.example.com; empty means gitlab.com.
func NewConnector(token, baseURL string) (*Connector, error) {
	var opts []gogitlab.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gogitlab.WithBaseURL(strings.TrimSuffix(baseURL, "/")+"/api/v4"))
	}
	client, err := gogitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}
	return &Connector{client: client}, nil
}

// Connect implements core.Connector.
func (c *Connector) Connect(_ context.Context, params core.Parameters) (core.Gateway, error) {
	if params.Username == "" || params.Repository == "" {
		return nil, fmt.Errorf("invalid project %q", params.Slug())
	}
	return &Repository{client: c.client, project: params.Slug()}, nil
}

// ComponentType implements introspection.Component.
func (c *Connector) ComponentType() string { return "gitlab" }

// Repository is a gateway to one GitLab project.
type Repository struct {
	client  *gogitlab.Client
	project string
}

// ReadFile returns the raw content of path on ref.
func (r *Repository) ReadFile(ctx context.Context, path, ref string) ([]byte, error) {
	data, _, err := r.client.RepositoryFiles.GetRawFile(r.project, path,
		&gogitlab.GetRawFileOptions{Ref: gogitlab.Ptr(ref)},
		gogitlab.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

// WriteFile creates path on branch.
func (r *Repository) WriteFile(ctx context.Context, path string, content []byte, branch, message string) error {
	_, _, err := r.client.RepositoryFiles.CreateFile(r.project, path, &gogitlab.CreateFileOptions{
		Branch:        gogitlab.Ptr(branch),
		Content:       gogitlab.Ptr(string(content)),
		CommitMessage: gogitlab.Ptr(message),
	}, gogitlab.WithContext(ctx))

	var glErr *gogitlab.ErrorResponse
	if errors.As(err, &glErr) && glErr.Response != nil && glErr.Response.StatusCode == http.StatusBadRequest &&
		strings.Contains(glErr.Message, "already exists") {
		return fmt.Errorf("%s on %s: %w: %w", path, branch, core.ErrFileExists, err)
	}
	return mapError(err)
}

// CreateBranch creates name at fromSHA.
func (r *Repository) CreateBranch(ctx context.Context, name, fromSHA string) error {
	_, _, err := r.client.Branches.CreateBranch(r.project, &gogitlab.CreateBranchOptions{
		Branch: gogitlab.Ptr(name),
		Ref:    gogitlab.Ptr(fromSHA),
	}, gogitlab.WithContext(ctx))
	return mapError(err)
}

// HeadCommit returns the sha branch points at.
func (r *Repository) HeadCommit(ctx context.Context, branch string) (string, error) {
	b, _, err := r.client.Branches.GetBranch(r.project, branch, gogitlab.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	if b.Commit == nil {
		return "", fmt.Errorf("branch %s has no commit: %w", branch, core.ErrNotFound)
	}
	return b.Commit.ID, nil
}

// OpenReviewRequest opens a merge request and returns its IID.
func (r *Repository) OpenReviewRequest(ctx context.Context, draft core.ReviewDraft) (string, error) {
	mr, _, err := r.client.MergeRequests.CreateMergeRequest(r.project, &gogitlab.CreateMergeRequestOptions{
		Title:        gogitlab.Ptr(draft.Title),
		Description:  gogitlab.Ptr(draft.Body),
		SourceBranch: gogitlab.Ptr(draft.Head),
		TargetBranch: gogitlab.Ptr(draft.Base),
	}, gogitlab.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return strconv.Itoa(mr.IID), nil
}

// GetReviewRequest fetches a merge request by IID.
func (r *Repository) GetReviewRequest(ctx context.Context, id string) (*core.ReviewRequest, error) {
	iid, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("merge request %q: %w", id, core.ErrNotFound)
	}

	mr, _, err := r.client.MergeRequests.GetMergeRequest(r.project, iid, nil, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	rr := &core.ReviewRequest{
		ID:         strconv.Itoa(mr.IID),
		State:      core.ReviewState(mr.State),
		Merged:     mr.State == "merged",
		HeadBranch: mr.SourceBranch,
		BaseBranch: mr.TargetBranch,
		Title:      mr.Title,
		Body:       mr.Description,
	}
	if mr.State == "opened" {
		rr.State = core.ReviewOpen
	}
	if mr.CreatedAt != nil {
		rr.CreatedAt = *mr.CreatedAt
	}
	return rr, nil
}

// DeleteBranch removes a branch.
func (r *Repository) DeleteBranch(ctx context.Context, name string) error {
	_, err := r.client.Branches.DeleteBranch(r.project, name, gogitlab.WithContext(ctx))
	return mapError(err)
}

// mapError marks 404s as core.ErrNotFound. The client returns its own
// ErrNotFound sentinel for them, older versions an *ErrorResponse.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gogitlab.ErrNotFound) {
		return fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}
	var glErr *gogitlab.ErrorResponse
	if errors.As(err, &glErr) && glErr.Response != nil && glErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}
	return err
}

var (
	_ core.Connector     = (*Connector)(nil)
	_ core.Gateway       = (*Repository)(nil)
	_ core.BranchDeleter = (*Repository)(nil)
)
