package datasource

import (
	"context"
	"fmt"
	"sync"
)

// RuntimeFetcher builds a plugin runtime for a provider, typically via the
// plugin daemon.
type RuntimeFetcher interface {
	FetchRuntime(ctx context.Context, tenantID, providerID string, providerType ProviderType) (PluginRuntime, error)
}

// Registry caches plugin runtimes per (tenant, provider, type). It is an
// explicit, lock-guarded object owned by whoever constructs it; nothing here
// hides in request-scoped ambient state.
type Registry struct {
	mu       sync.Mutex
	fetcher  RuntimeFetcher
	runtimes map[string]PluginRuntime
}

func NewRegistry(fetcher RuntimeFetcher) *Registry {
	return &Registry{
		fetcher:  fetcher,
		runtimes: map[string]PluginRuntime{},
	}
}

// Runtime returns the cached runtime for the provider, fetching it on first
// use. Fetch failures are not cached.
func (r *Registry) Runtime(ctx context.Context, tenantID, providerID string, providerType ProviderType) (PluginRuntime, error) {
	key := tenantID + "/" + providerID + "/" + string(providerType)

	r.mu.Lock()
	defer r.mu.Unlock()
	if runtime, ok := r.runtimes[key]; ok {
		return runtime, nil
	}

	runtime, err := r.fetcher.FetchRuntime(ctx, tenantID, providerID, providerType)
	if err != nil {
		return nil, fmt.Errorf("fetch datasource runtime %s: %w", key, err)
	}
	r.runtimes[key] = runtime
	return runtime, nil
}
