package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
)

// Connector maps submission parameters onto repositories below a root
// directory: <root>/<username>/<repository>.
type Connector struct {
	root     string
	template Config

	connections atomic.Int64

	mu    sync.Mutex
	watch *reviewWatcher
}

// NewConnector creates a connector rooted at root. template supplies every
// Config field except Path.
func NewConnector(root string, template Config) *Connector {
	return &Connector{root: root, template: template}
}

// Connect returns the initialized repository addressed by params.
func (c *Connector) Connect(ctx context.Context, params core.Parameters) (core.Gateway, error) {
	return c.Repository(ctx, params)
}

// Repository is Connect with the concrete type, for callers that need the
// local-only operations (merging and listing reviews).
func (c *Connector) Repository(ctx context.Context, params core.Parameters) (*Repository, error) {
	for _, part := range []string{params.Username, params.Repository} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return nil, fmt.Errorf("invalid repository name %q", params.Slug())
		}
	}

	cfg := c.template
	cfg.Path = filepath.Join(c.root, params.Username, params.Repository)

	repo := NewRepository(cfg)
	if err := repo.Initialize(ctx); err != nil {
		return nil, err
	}
	c.connections.Add(1)

	if err := c.watchRepository(ctx, repo, params); err != nil {
		return nil, err
	}
	return repo, nil
}

// watchRepository adds the review directory of repo to a running watch.
func (c *Connector) watchRepository(ctx context.Context, repo *Repository, params core.Parameters) error {
	c.mu.Lock()
	w := c.watch
	c.mu.Unlock()
	if w == nil {
		return nil
	}

	dir, err := repo.reviewsPath(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create review directory: %w", err)
	}
	return w.add(dir, core.Parameters{Service: "fs", Username: params.Username, Repository: params.Repository})
}

var _ core.Connector = (*Connector)(nil)
