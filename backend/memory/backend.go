package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mwantia/folders/backend"
	"github.com/tidwall/btree"
)

const Kind = "memory"

// MemoryBackend keeps a flat key space in an ordered B-tree. Folders are
// either marker keys with a trailing separator or implied by deeper keys,
// exactly like an object store without a delimiter primitive.
type MemoryBackend struct {
	mu       sync.RWMutex
	settings *backend.Settings
	options  *Options

	objects *btree.Map[string, *object]
}

type object struct {
	content  []byte
	modified time.Time
}

// Options configures a memory backend.
type Options struct {
	MaxObjectSize int64 `option:"maxObjectSize" validate:"min=0"`
	MinDepth      int   `option:"minDepth" validate:"min=0"`
	// ConnectionString is accepted for address-based construction and ignored.
	ConnectionString string `option:"connectionString"`
}

func defaultOptions() *Options {
	return &Options{
		MaxObjectSize: 10 * 1024 * 1024,
		MinDepth:      1,
	}
}

func NewMemoryBackend(opts backend.Options, settings *backend.Settings) (*MemoryBackend, error) {
	options := defaultOptions()
	if err := backend.DecodeOptions(Kind, opts, options); err != nil {
		return nil, err
	}

	return &MemoryBackend{
		settings: settings.WithDefaults(Kind),
		options:  options,
		objects:  btree.NewMap[string, *object](0),
	}, nil
}

// Register adds the memory kind to reg.
func Register(reg *backend.Registry) error {
	return reg.Register(Kind, func(ctx context.Context, opts backend.Options, settings *backend.Settings) (backend.Backend, error) {
		return NewMemoryBackend(opts, settings)
	}, "mem", "ephemeral")
}

// Name returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return Kind
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.objects.Clear()
	return nil
}

// Capabilities returns the operations supported by this backend.
func (mb *MemoryBackend) Capabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityCat,
			backend.CapabilityLs,
			backend.CapabilityWrite,
			backend.CapabilityUnlink,
			backend.CapabilityRmdir,
			backend.CapabilityMkdir,
			backend.CapabilityRangeCat,
		},
		MaxObjectSize: mb.options.MaxObjectSize,
		MinDepth:      mb.options.MinDepth,
	}
}
