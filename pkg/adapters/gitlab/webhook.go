package gitlab

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	gogitlab "gitlab.com/gitlab-org/api/client-go"
)

var (
	// ErrIgnoredEvent is returned for deliveries that do not close a merge request.
	ErrIgnoredEvent = errors.New("event ignored")
	// ErrInvalidToken is returned when the delivery token does not match.
	ErrInvalidToken = errors.New("invalid webhook token")
)

// ClosedMergeRequest identifies a merge request that was just merged or closed.
type ClosedMergeRequest struct {
	Parameters core.Parameters
	ReviewID   string
	Merged     bool
}

// ParseWebhook checks the X-Gitlab-Token header against token and extracts
// the merge request the delivery reports. An empty token skips the check.
func ParseWebhook(r *http.Request, token string) (*ClosedMergeRequest, error) {
	if token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Gitlab-Token")), []byte(token)) != 1 {
		return nil, ErrInvalidToken
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook: %w", err)
	}

	event, err := gogitlab.ParseWebhook(gogitlab.HookEventType(r), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse webhook: %w", err)
	}

	mr, ok := event.(*gogitlab.MergeEvent)
	if !ok {
		return nil, ErrIgnoredEvent
	}
	action := mr.ObjectAttributes.Action
	if action != "merge" && action != "close" {
		return nil, ErrIgnoredEvent
	}

	namespace, name, ok := strings.Cut(mr.Project.PathWithNamespace, "/")
	if !ok {
		return nil, fmt.Errorf("unexpected project path %q", mr.Project.PathWithNamespace)
	}

	return &ClosedMergeRequest{
		Parameters: core.Parameters{
			Service:    "gitlab",
			Username:   namespace,
			Repository: name,
			Branch:     mr.ObjectAttributes.TargetBranch,
		},
		ReviewID: strconv.Itoa(mr.ObjectAttributes.IID),
		Merged:   action == "merge",
	}, nil
}
