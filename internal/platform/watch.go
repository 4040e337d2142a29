package platform

import (
	"context"
	"errors"

	"github.com/aretw0/lifecycle"
	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/fs"
)

// ErrNoLocalConnector is returned by WatchLocalReviews when the fs adapter is not configured.
var ErrNoLocalConnector = errors.New("local repositories are not configured")

// WatchLocalReviews runs the merge callback for every review request merged
// in a local repository, until ctx is done. It is the fs counterpart of the
// hosting services' webhooks.
func (p *Platform) WatchLocalReviews(ctx context.Context) error {
	c, err := p.Router.Lookup("fs")
	if err != nil {
		return ErrNoLocalConnector
	}
	local, ok := c.(*fs.Connector)
	if !ok {
		return ErrNoLocalConnector
	}

	events := make(chan fs.ReviewEvent, 16)
	watchErr := make(chan error, 1)
	report := func(err error) {
		select {
		case watchErr <- err:
		default:
		}
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		err := local.WatchReviews(ctx, events)
		report(err)
		return err
	}, lifecycle.WithErrorHandler(report))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			return err
		case ev := <-events:
			if !ev.Review.Merged {
				continue
			}
			out, err := p.Service.ProcessReview(ctx, ev.Parameters, ev.Review.ID)
			if p.logger == nil {
				continue
			}
			if err != nil {
				p.logger.Error("failed to process local review", "repository", ev.Parameters.Slug(), "review", ev.Review.ID, "error", err)
				continue
			}
			p.logger.Info("processed local review", "repository", ev.Parameters.Slug(), "review", out.ReviewID, "handled", out.Handled, "branch_deleted", out.BranchDeleted)
		}
	}
}
