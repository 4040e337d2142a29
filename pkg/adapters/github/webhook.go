package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	gogithub "github.com/google/go-github/v75/github"
)

// ErrIgnoredEvent is returned for deliveries that do not close a pull request.
var ErrIgnoredEvent = errors.New("event ignored")

// ClosedPullRequest identifies a pull request that was just closed.
type ClosedPullRequest struct {
	Parameters core.Parameters
	ReviewID   string
	Merged     bool
}

// ParseWebhook validates a webhook delivery against secret and extracts the
// closed pull request it reports. An empty secret skips signature checks.
func ParseWebhook(r *http.Request, secret []byte) (*ClosedPullRequest, error) {
	payload, err := gogithub.ValidatePayload(r, secret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	event, err := gogithub.ParseWebHook(gogithub.WebHookType(r), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse webhook: %w", err)
	}

	pre, ok := event.(*gogithub.PullRequestEvent)
	if !ok || pre.GetAction() != "closed" {
		return nil, ErrIgnoredEvent
	}

	pr := pre.GetPullRequest()
	return &ClosedPullRequest{
		Parameters: core.Parameters{
			Service:    "github",
			Username:   pre.GetRepo().GetOwner().GetLogin(),
			Repository: pre.GetRepo().GetName(),
			Branch:     pr.GetBase().GetRef(),
		},
		ReviewID: strconv.Itoa(pr.GetNumber()),
		Merged:   pr.GetMerged(),
	}, nil
}
