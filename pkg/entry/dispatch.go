package entry

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/review"
)

// dispatch stores the entry, either straight on the target branch or on a
// fresh branch behind a review request. It returns the review id, if any.
func (s *Service) dispatch(ctx context.Context, r *request) (string, error) {
	s.subscribe(ctx, r)

	if r.cfg.Moderation {
		return s.openReview(ctx, r)
	}

	if err := s.write(ctx, r, r.Parameters.Branch); err != nil {
		return "", err
	}

	if parent := r.Options.Parent(); parent != "" && r.cfg.Notifications.Enabled && s.notifier != nil {
		n := core.Notification{
			ThreadID: core.ThreadID(r.Parameters, parent),
			Fields:   r.processed,
			Options:  r.Options,
			SiteName: r.cfg.Name,
		}
		s.runTask(context.WithoutCancel(ctx), func(ctx context.Context) error {
			if err := s.notifier.Notify(ctx, n); err != nil {
				return fmt.Errorf("failed to notify thread %s: %w", n.ThreadID, err)
			}
			return nil
		})
	}
	return "", nil
}

// subscribe adds the submitter to the parent thread. Failures are logged only.
func (s *Service) subscribe(ctx context.Context, r *request) {
	parent := r.Options.Parent()
	if parent == "" || r.subscriber == "" || !r.cfg.Notifications.Enabled || s.notifier == nil {
		return
	}

	threadID := core.ThreadID(r.Parameters, parent)
	if err := s.notifier.Subscribe(ctx, threadID, r.subscriber); err != nil {
		clog.FromContext(ctx).With("thread", threadID).Warnf("subscription failed: %v", err)
	}
}

func (s *Service) write(ctx context.Context, r *request, branch string) error {
	err := r.gw.WriteFile(ctx, r.path, r.payload, branch, r.message)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrFileExists):
		return core.WrapError(core.KindGatewayWriteFailed, core.CodeFileExists, err)
	default:
		return core.WrapError(core.KindGatewayWriteFailed, core.CodeWriteFailed, err)
	}
}

// openReview creates <prefix>_<id> from the head of the target branch,
// writes the entry there and opens a review request whose body carries the
// callback envelope.
func (s *Service) openReview(ctx context.Context, r *request) (string, error) {
	base := r.Parameters.Branch
	branch := s.prefix + "_" + r.id

	// 1. Branch off the target
	sha, err := r.gw.HeadCommit(ctx, base)
	if err != nil {
		return "", core.WrapError(core.KindGatewayReadFailed, core.CodeReadFailed, fmt.Errorf("failed to resolve %s: %w", base, err))
	}
	if err := r.gw.CreateBranch(ctx, branch, sha); err != nil {
		return "", core.WrapError(core.KindGatewayWriteFailed, core.CodeWriteFailed, fmt.Errorf("failed to create branch %s: %w", branch, err))
	}

	// 2. Write the entry on the review branch
	if err := s.write(ctx, r, branch); err != nil {
		return "", err
	}

	// 3. Open the review request
	body, err := review.Body(r.cfg.PullRequestBody, r.processed, review.Envelope{
		Version:    review.Version,
		ConfigPath: s.configPath,
		Fields:     r.processed,
		Options:    r.Options,
		Parameters: r.Parameters,
	})
	if err != nil {
		return "", core.WrapError(core.KindGatewayReviewFailed, core.CodeReviewFailed, err)
	}

	id, err := r.gw.OpenReviewRequest(ctx, core.ReviewDraft{
		Title: r.message,
		Head:  branch,
		Base:  base,
		Body:  body,
	})
	if err != nil {
		return "", core.WrapError(core.KindGatewayReviewFailed, core.CodeReviewFailed, err)
	}

	s.reviews.Add(1)
	clog.FromContext(ctx).With("review", id).Infof("review request opened from %s", branch)
	return id, nil
}
