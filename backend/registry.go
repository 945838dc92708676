package backend

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/mwantia/folders/data"
)

// Factory validates opts and constructs a backend. Validation errors must
// be returned here, never deferred to the first operation.
type Factory func(ctx context.Context, opts Options, settings *Settings) (Backend, error)

// Registry maps backend kind tags to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	schemes   map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		schemes:   make(map[string]string),
	}
}

// Register adds a factory for kind. Schemes are URL schemes resolved by
// NewFromAddress, the kind itself is always one of them.
func (r *Registry) Register(kind string, factory Factory, schemes ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind = strings.ToLower(kind)
	if kind == "" || factory == nil {
		return data.NewError(data.ErrConfig, "register", kind, nil).WithMessage("backend kind and factory are required")
	}
	if _, exists := r.factories[kind]; exists {
		return data.NewError(data.ErrConfig, "register", kind, nil).WithMessage("backend kind '%s' already registered", kind)
	}

	r.factories[kind] = factory
	for _, scheme := range append([]string{kind}, schemes...) {
		r.schemes[strings.ToLower(scheme)] = kind
	}
	return nil
}

// Kinds returns all registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// New constructs a backend of the given kind.
func (r *Registry) New(ctx context.Context, kind string, opts Options, settings *Settings) (Backend, error) {
	r.mu.RLock()
	factory, exists := r.factories[strings.ToLower(kind)]
	r.mu.RUnlock()

	if !exists {
		return nil, data.NewError(data.ErrConfig, "configure", kind, nil).
			WithMessage("unknown backend kind '%s', expected one of [%s]", kind, strings.Join(r.Kinds(), ", "))
	}

	if opts == nil {
		opts = Options{}
	}
	return factory(ctx, opts, settings.WithDefaults(strings.ToLower(kind)))
}

// NewFromAddress resolves the kind from the URL scheme of address,
// for example "s3://bucket" or "ssh://user@host:22", and passes the
// address as the "connectionString" option.
func (r *Registry) NewFromAddress(ctx context.Context, address string, opts Options, settings *Settings) (Backend, error) {
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil || u.Scheme == "" {
		return nil, data.NewError(data.ErrConfig, "configure", address, err).WithMessage("malformed backend address '%s'", address)
	}

	r.mu.RLock()
	kind, exists := r.schemes[strings.ToLower(u.Scheme)]
	r.mu.RUnlock()

	if !exists {
		return nil, data.NewError(data.ErrConfig, "configure", address, nil).WithMessage("unknown backend protocol '%s'", u.Scheme)
	}

	merged := Options{}
	for k, v := range opts {
		merged[k] = v
	}
	merged["connectionString"] = address

	return r.New(ctx, kind, merged, settings)
}
