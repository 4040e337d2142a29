package platform

import (
	"context"
	"fmt"
	"slices"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
)

// Router is a core.Connector that picks the connector named by
// Parameters.Service, or the fallback when the request names none.
type Router struct {
	connectors map[string]core.Connector
	fallback   string
}

// NewRouter creates a router over connectors.
func NewRouter(connectors map[string]core.Connector, fallback string) *Router {
	return &Router{connectors: connectors, fallback: fallback}
}

// Connect implements core.Connector.
func (r *Router) Connect(ctx context.Context, params core.Parameters) (core.Gateway, error) {
	c, err := r.Lookup(params.Service)
	if err != nil {
		return nil, err
	}
	return c.Connect(ctx, params)
}

// Lookup returns the connector for service.
func (r *Router) Lookup(service string) (core.Connector, error) {
	if service == "" {
		service = r.fallback
	}
	c, ok := r.connectors[service]
	if !ok {
		return nil, fmt.Errorf("service %q is not configured", service)
	}
	return c, nil
}

// Services lists the configured service names.
func (r *Router) Services() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ComponentType implements introspection.Component.
func (r *Router) ComponentType() string { return "router" }

var _ core.Connector = (*Router)(nil)
