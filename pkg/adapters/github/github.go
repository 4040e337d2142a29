// Package github implements the version-control gateway on the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	gogithub "github.com/google/go-github/v75/github"
)

// Connector scopes a GitHub client to the repository named by the parameters.
type Connector struct {
	client *gogithub.Client
}

// NewConnector creates a connector authenticated with token. A non-empty
// baseURL targets a GitHub Enterprise Server instance.
func NewConnector(token, baseURL string) (*Connector, error) {
	client := gogithub.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != "" {
		var err error
		if client, err = client.WithEnterpriseURLs(baseURL, baseURL); err != nil {
			return nil, fmt.Errorf("failed to configure github url: %w", err)
		}
	}
	return &Connector{client: client}, nil
}

// NewConnectorWithClient wraps an existing client.
func NewConnectorWithClient(client *gogithub.Client) *Connector {
	return &Connector{client: client}
}

// Connect implements core.Connector.
func (c *Connector) Connect(_ context.Context, params core.Parameters) (core.Gateway, error) {
	if params.Username == "" || params.Repository == "" {
		return nil, fmt.Errorf("invalid repository %q", params.Slug())
	}
	return &Repository{client: c.client, owner: params.Username, repo: params.Repository}, nil
}

// ComponentType implements introspection.Component.
func (c *Connector) ComponentType() string { return "github" }

// Repository is a gateway to one GitHub repository.
type Repository struct {
	client *gogithub.Client
	owner  string
	repo   string
}

// ReadFile returns the content of path on ref.
func (r *Repository) ReadFile(ctx context.Context, path, ref string) ([]byte, error) {
	file, _, _, err := r.client.Repositories.GetContents(ctx, r.owner, r.repo, path, &gogithub.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, mapError(err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is not a file: %w", path, core.ErrNotFound)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return []byte(content), nil
}

// WriteFile creates path on branch. GitHub refuses to create a file that exists.
func (r *Repository) WriteFile(ctx context.Context, path string, content []byte, branch, message string) error {
	_, _, err := r.client.Repositories.CreateFile(ctx, r.owner, r.repo, path, &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr(message),
		Content: content,
		Branch:  gogithub.Ptr(branch),
	})
	if fileExists(err) {
		return fmt.Errorf("%s on %s: %w: %w", path, branch, core.ErrFileExists, err)
	}
	return mapError(err)
}

// CreateBranch creates refs/heads/name at fromSHA.
func (r *Repository) CreateBranch(ctx context.Context, name, fromSHA string) error {
	_, _, err := r.client.Git.CreateRef(ctx, r.owner, r.repo, gogithub.CreateRef{
		Ref: "refs/heads/" + name,
		SHA: fromSHA,
	})
	return mapError(err)
}

// HeadCommit returns the sha branch points at.
func (r *Repository) HeadCommit(ctx context.Context, branch string) (string, error) {
	ref, _, err := r.client.Git.GetRef(ctx, r.owner, r.repo, "heads/"+branch)
	if err != nil {
		return "", mapError(err)
	}
	return ref.GetObject().GetSHA(), nil
}

// OpenReviewRequest opens a pull request and returns its number.
func (r *Repository) OpenReviewRequest(ctx context.Context, draft core.ReviewDraft) (string, error) {
	pr, _, err := r.client.PullRequests.Create(ctx, r.owner, r.repo, &gogithub.NewPullRequest{
		Title: gogithub.Ptr(draft.Title),
		Head:  gogithub.Ptr(draft.Head),
		Base:  gogithub.Ptr(draft.Base),
		Body:  gogithub.Ptr(draft.Body),
	})
	if err != nil {
		return "", mapError(err)
	}
	return strconv.Itoa(pr.GetNumber()), nil
}

// GetReviewRequest fetches a pull request by number.
func (r *Repository) GetReviewRequest(ctx context.Context, id string) (*core.ReviewRequest, error) {
	number, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("pull request %q: %w", id, core.ErrNotFound)
	}

	pr, _, err := r.client.PullRequests.Get(ctx, r.owner, r.repo, number)
	if err != nil {
		return nil, mapError(err)
	}
	return ReviewFromPullRequest(pr), nil
}

// DeleteBranch removes refs/heads/name.
func (r *Repository) DeleteBranch(ctx context.Context, name string) error {
	_, err := r.client.Git.DeleteRef(ctx, r.owner, r.repo, "heads/"+name)
	return mapError(err)
}

// ReviewFromPullRequest converts a pull request to the pipeline's view of it.
func ReviewFromPullRequest(pr *gogithub.PullRequest) *core.ReviewRequest {
	rr := &core.ReviewRequest{
		ID:         strconv.Itoa(pr.GetNumber()),
		State:      core.ReviewState(pr.GetState()),
		Merged:     pr.GetMerged(),
		HeadBranch: pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		CreatedAt:  pr.GetCreatedAt().Time,
	}
	if rr.Merged {
		rr.State = core.ReviewMerged
	}
	return rr
}

// mapError translates a missing resource to core.ErrNotFound.
func mapError(err error) error {
	if status(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}
	return err
}

// fileExists reports whether a contents API rejection means the path is
// already taken. GitHub asks for the blob sha it would overwrite.
func fileExists(err error) bool {
	var ghErr *gogithub.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return false
	}
	switch ghErr.Response.StatusCode {
	case http.StatusUnprocessableEntity, http.StatusConflict:
		msg := strings.ToLower(ghErr.Message)
		return strings.Contains(msg, `"sha" wasn't supplied`) || strings.Contains(msg, "already exists")
	}
	return false
}

func status(err error) int {
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

var (
	_ core.Connector     = (*Connector)(nil)
	_ core.Gateway       = (*Repository)(nil)
	_ core.BranchDeleter = (*Repository)(nil)
)
