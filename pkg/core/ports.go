package core

import (
	"context"
	"time"
)

// Connector scopes a Gateway to the repository named by the parameters.
// Adapters are free to cache clients across calls.
type Connector interface {
	Connect(ctx context.Context, p Parameters) (Gateway, error)
}

// Gateway defines the contract with the version-control host.
// Adhering to this interface keeps the pipeline independent of the
// underlying host (local git, GitHub, GitLab...).
type Gateway interface {
	// ReadFile returns the content of path at ref (branch name or commit).
	// It returns an error matching ErrNotFound when the file does not exist.
	ReadFile(ctx context.Context, path, ref string) ([]byte, error)

	// WriteFile creates path on branch in a single commit.
	// It returns an error matching ErrFileExists when path already has content.
	WriteFile(ctx context.Context, path string, content []byte, branch, message string) error

	// CreateBranch creates branch name pointing at fromSHA.
	CreateBranch(ctx context.Context, name, fromSHA string) error

	// HeadCommit returns the SHA the branch currently points at.
	HeadCommit(ctx context.Context, branch string) (string, error)

	// OpenReviewRequest proposes merging draft.Head into draft.Base and returns its id.
	OpenReviewRequest(ctx context.Context, draft ReviewDraft) (string, error)

	// GetReviewRequest retrieves a review request by id.
	GetReviewRequest(ctx context.Context, id string) (*ReviewRequest, error)
}

// BranchDeleter is implemented by gateways that can remove branches.
// The merge flow uses it to clean up moderation branches.
type BranchDeleter interface {
	DeleteBranch(ctx context.Context, name string) error
}

// ReviewDraft is what the pipeline sends to open a review request.
type ReviewDraft struct {
	Title string
	Head  string
	Base  string
	Body  string
}

// ReviewState is the lifecycle state of a review request.
type ReviewState string

const (
	ReviewOpen   ReviewState = "open"
	ReviewClosed ReviewState = "closed"
	ReviewMerged ReviewState = "merged"
)

// ReviewRequest is a pull/merge request as seen by the pipeline.
type ReviewRequest struct {
	ID         string      `json:"id" yaml:"id"`
	State      ReviewState `json:"state" yaml:"state"`
	Merged     bool        `json:"merged" yaml:"merged"`
	HeadBranch string      `json:"headBranch" yaml:"head_branch"`
	BaseBranch string      `json:"baseBranch" yaml:"base_branch"`
	Title      string      `json:"title" yaml:"title"`
	Body       string      `json:"body" yaml:"body"`
	CreatedAt  time.Time   `json:"createdAt" yaml:"created_at"`
}

// SpamCheck is the input of a spam classification.
type SpamCheck struct {
	IP          string
	UserAgent   string
	Type        string
	Author      string
	AuthorEmail string
	AuthorURL   string
	Content     string
}

// SpamChecker classifies submissions. Transport failures are returned as errors.
type SpamChecker interface {
	CheckSpam(ctx context.Context, in SpamCheck) (bool, error)
}

// CaptchaVerifier checks a challenge response against a secret.
type CaptchaVerifier interface {
	Verify(ctx context.Context, secret, response, remoteIP string) error
}

// Notification is sent to the subscribers of a thread.
type Notification struct {
	ThreadID string
	Fields   Fields
	Options  Options
	SiteName string
}

// Notifier records subscribers and delivers notifications to them.
type Notifier interface {
	Subscribe(ctx context.Context, threadID, address string) error
	Notify(ctx context.Context, n Notification) error
}

// Decrypter reveals secrets embedded (encrypted) in site configurations.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}
