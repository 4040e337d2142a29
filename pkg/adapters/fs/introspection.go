package fs

import (
	"context"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path     string `json:"path"`
	Bare     bool   `json:"bare"`
	Branch   string `json:"branch,omitempty"`
	AutoInit bool   `json:"auto_init"`
	Reviews  int    `json:"reviews"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	ctx := context.Background()
	bare, _ := r.git.IsBare(ctx)
	ids, _ := r.reviewIDs(ctx)

	return RepositoryState{
		Path:     r.Path,
		Bare:     bare,
		Branch:   r.git.CurrentBranch(ctx),
		AutoInit: r.config.AutoInit,
		Reviews:  len(ids),
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

// ConnectorState exposes internal state for observability.
type ConnectorState struct {
	Root        string `json:"root"`
	Connections int64  `json:"connections"`
	Watching    bool   `json:"watching"`
}

// State implements introspection.Introspectable.
func (c *Connector) State() any {
	return ConnectorState{
		Root:        c.root,
		Connections: c.connections.Load(),
		Watching:    c.Watching(),
	}
}

// ComponentType implements introspection.Component.
func (c *Connector) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
var _ introspection.Introspectable = (*Connector)(nil)
var _ introspection.Component = (*Connector)(nil)
