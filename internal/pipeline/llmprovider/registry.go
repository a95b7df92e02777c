package llmprovider

import (
	"fmt"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// Registry resolves a pipeline.ProviderKind to a constructed Provider.
// cmd/qagen builds it (alongside the embedprovider registry) instead of a
// global, per the "global singletons -> explicit dependencies" design
// note, and passes the resolved Provider into run.Context.
type Registry struct {
	providers map[pipeline.ProviderKind]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[pipeline.ProviderKind]Provider)}
}

// Register adds a backend under its own Kind().
func (r *Registry) Register(p Provider) {
	r.providers[p.Kind()] = p
}

// Get resolves kind to a Provider, or an error if none was registered.
func (r *Registry) Get(kind pipeline.ProviderKind) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("llmprovider: no provider registered for kind %q", kind)
	}
	return p, nil
}
