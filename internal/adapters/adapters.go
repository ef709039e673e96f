// Package adapters maps provider names onto adapter instances.
package adapters

import (
	"sort"
	"time"

	"modelgate/config"
	"modelgate/internal/core"
	"modelgate/internal/pkg/llmclient"
)

// Options carries cross-cutting construction options shared by every
// adapter the factory builds.
type Options struct {
	// Hooks for upstream observability (metrics). Zero value disables.
	Hooks llmclient.Hooks

	// Timeout bounds every upstream call. Zero means the shared default.
	Timeout time.Duration
}

// Builder creates an adapter instance from an API key and shared options.
type Builder func(apiKey string, opts Options) core.Adapter

// Registration couples a provider type name with its builder. Provider
// packages export one of these for the factory to collect.
type Registration struct {
	Type string
	New  Builder
}

// Factory resolves provider names to adapter instances. Resolution is a
// pure mapping from configuration to a constructed adapter; no network
// I/O happens here.
type Factory struct {
	opts     Options
	builders map[string]Builder
}

// NewFactory creates a factory holding the given registrations.
func NewFactory(opts Options, regs ...Registration) *Factory {
	f := &Factory{
		opts:     opts,
		builders: make(map[string]Builder, len(regs)),
	}
	for _, reg := range regs {
		f.Register(reg)
	}
	return f
}

// Register adds a registration. Later registrations win on name clashes.
func (f *Factory) Register(reg Registration) {
	f.builders[reg.Type] = reg.New
}

// Resolve instantiates the adapter for the named provider. Unknown names
// and providers without a credential come back as configuration errors;
// the caller decides how to render them.
func (f *Factory) Resolve(name string, cfg config.ProviderConfig) (core.Adapter, error) {
	builder, ok := f.builders[name]
	if !ok {
		return nil, core.NewUnknownProviderError(name)
	}
	if !cfg.Available() {
		return nil, core.NewUnavailableError(name)
	}

	adapter := builder(cfg.APIKey, f.opts)
	if cfg.BaseURL != "" {
		if setter, ok := adapter.(interface{ SetBaseURL(string) }); ok {
			setter.SetBaseURL(cfg.BaseURL)
		}
	}
	return adapter, nil
}

// Registered returns the sorted list of registered provider types.
func (f *Factory) Registered() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
