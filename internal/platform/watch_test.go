package platform

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/fs"
	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/entry"
	"github.com/eduardoboucas/jekyll-discuss/pkg/git"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moderatedSite = `
comments:
  allowedFields: ["name", "message"]
  branch: main
  format: yaml
  path: "_data/comments"
  filename: "{@id}"
  moderation: true
`

func TestWatchLocalReviews(t *testing.T) {
	if !git.IsInstalled() {
		t.Skip("git not installed")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	cfg := testConfig("fs")
	cfg.Gateway.FS = FSConfig{Root: root, AutoInit: true, InitialBranch: "main"}
	p, err := New(ctx, cfg)
	require.NoError(t, err)

	c, err := p.Router.Lookup("fs")
	require.NoError(t, err)
	local := c.(*fs.Connector)

	params := core.Parameters{Service: "fs", Username: "jane", Repository: "blog", Branch: "main", Property: "comments"}
	repo, err := local.Repository(ctx, params)
	require.NoError(t, err)
	require.NoError(t, repo.WriteFile(ctx, cfg.Review.ConfigPath, []byte(moderatedSite), "main", "Add site config"))

	res, err := p.Service.Process(ctx, entry.Request{
		Parameters: params,
		Fields:     core.Fields{"name": "Jane", "message": "Hello"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.ReviewID)

	done := make(chan error, 1)
	go func() { done <- p.WatchLocalReviews(ctx) }()
	require.Eventually(t, local.Watching, 2*time.Second, 10*time.Millisecond)

	rr, err := repo.MergeReviewRequest(ctx, res.ReviewID)
	require.NoError(t, err)

	client := git.NewClient(filepath.Join(root, "jane", "blog"), nil)
	assert.Eventually(t, func() bool {
		_, err := client.ResolveBranch(ctx, rr.HeadBranch)
		return err != nil
	}, 3*time.Second, 20*time.Millisecond, "review branch should be deleted")

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchLocalReviews_NoLocalConnector(t *testing.T) {
	p, err := New(context.Background(), testConfig("github"))
	require.NoError(t, err)
	assert.ErrorIs(t, p.WatchLocalReviews(context.Background()), ErrNoLocalConnector)
}
