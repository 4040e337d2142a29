package entry

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/review"
)

// MergeOutcome reports what ProcessReview did with a review request.
type MergeOutcome struct {
	ReviewID      string `json:"reviewId"`
	Merged        bool   `json:"merged"`
	Handled       bool   `json:"handled"`
	BranchDeleted bool   `json:"branchDeleted"`
	// Reason explains why a review was not handled.
	Reason string `json:"reason,omitempty"`
}

// ProcessMerge replays the callback state of a merged review: the site
// configuration it references is loaded and validated again, then the parent
// thread is notified. Notification errors are returned.
func (s *Service) ProcessMerge(ctx context.Context, env review.Envelope) error {
	gw, err := s.connector.Connect(ctx, env.Parameters)
	if err != nil {
		return core.WrapError(core.KindGatewayReadFailed, core.CodeReadFailed, fmt.Errorf("failed to connect to %s: %w", env.Parameters.Slug(), err))
	}

	path := env.ConfigPath
	if path == "" {
		path = s.configPath
	}
	cfg, err := s.readConfig(ctx, gw, path, env.Parameters, env.Options)
	if err != nil {
		return err
	}

	parent := env.Options.Parent()
	if parent == "" || !cfg.Notifications.Enabled || s.notifier == nil {
		return nil
	}

	err = s.notifier.Notify(ctx, core.Notification{
		ThreadID: core.ThreadID(env.Parameters, parent),
		Fields:   env.Fields,
		Options:  env.Options,
		SiteName: cfg.Name,
	})
	if err != nil {
		return core.WrapError(core.KindNotificationFailed, core.CodeNotificationFailed, err)
	}
	return nil
}

// ProcessReview handles a closed review request. Reviews that were not
// merged or were not opened by the pipeline are ignored.
func (s *Service) ProcessReview(ctx context.Context, params core.Parameters, reviewID string) (*MergeOutcome, error) {
	ctx = s.requestLogger(ctx, reviewID, params)
	out := &MergeOutcome{ReviewID: reviewID}

	gw, err := s.connector.Connect(ctx, params)
	if err != nil {
		return nil, core.WrapError(core.KindGatewayReadFailed, core.CodeReadFailed, fmt.Errorf("failed to connect to %s: %w", params.Slug(), err))
	}

	rr, err := gw.GetReviewRequest(ctx, reviewID)
	if err != nil {
		return nil, core.WrapError(core.KindGatewayReadFailed, core.CodeReadFailed, fmt.Errorf("failed to fetch review %s: %w", reviewID, err))
	}
	out.Merged = rr.Merged

	switch {
	case !rr.Merged:
		out.Reason = "review is not merged"
		return out, nil
	case !strings.HasPrefix(rr.HeadBranch, s.prefix+"_"):
		out.Reason = "review was not opened by discuss"
		return out, nil
	}

	env, err := review.Extract(rr.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read callback state of review %s: %w", reviewID, err)
	}
	// The body is editable by anyone who can open the review, so the
	// envelope must target the repository and branch the review merged into.
	if !sameRepository(env.Parameters, params) || env.Parameters.Branch != rr.BaseBranch {
		clog.FromContext(ctx).With("target", env.Parameters.Slug(), "branch", env.Parameters.Branch).
			Warnf("callback state of review %s does not match the merged review", reviewID)
		out.Reason = "callback state targets another repository or branch"
		return out, nil
	}
	env.Parameters.Service = params.Service
	if err := s.ProcessMerge(ctx, *env); err != nil {
		return nil, err
	}
	out.Handled = true
	s.merged.Add(1)

	if deleter, ok := gw.(core.BranchDeleter); ok {
		if err := deleter.DeleteBranch(ctx, rr.HeadBranch); err != nil {
			clog.FromContext(ctx).With("branch", rr.HeadBranch).Warnf("failed to delete review branch: %v", err)
		} else {
			out.BranchDeleted = true
		}
	}
	return out, nil
}

func sameRepository(a, b core.Parameters) bool {
	return strings.EqualFold(a.Username, b.Username) && strings.EqualFold(a.Repository, b.Repository)
}
