package local

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

const Kind = "local"

// LocalBackend exposes a directory of the host filesystem. All access goes
// through an os.Root, so neither paths nor symlinks can leave the directory.
type LocalBackend struct {
	mu       sync.RWMutex
	settings *backend.Settings
	options  *Options

	root *os.Root
}

type Options struct {
	// ConnectionString like "file:///srv/data", used when Path is empty.
	ConnectionString string `option:"connectionString"`
	Path             string `option:"path"`
	MinDepth         int    `option:"minDepth" validate:"min=0"`
	MaxObjectSize    int64  `option:"maxObjectSize" validate:"min=0"`
}

func defaultOptions() *Options {
	return &Options{
		MinDepth: 1,
	}
}

func (o *Options) Validate() error {
	if o.Path == "" && o.ConnectionString != "" {
		u, err := url.Parse(o.ConnectionString)
		if err != nil {
			return fmt.Errorf("malformed connectionString: %w", err)
		}
		o.Path = u.Host + u.Path
	}
	if o.Path == "" {
		return fmt.Errorf("option 'path' is required")
	}

	o.Path = filepath.Clean(o.Path)
	return nil
}

func NewLocalBackend(opts backend.Options, settings *backend.Settings) (*LocalBackend, error) {
	options := defaultOptions()
	if err := backend.DecodeOptions(Kind, opts, options); err != nil {
		return nil, err
	}

	return &LocalBackend{
		settings: settings.WithDefaults(Kind),
		options:  options,
	}, nil
}

// Register adds the local kind to reg.
func Register(reg *backend.Registry) error {
	return reg.Register(Kind, func(ctx context.Context, opts backend.Options, settings *backend.Settings) (backend.Backend, error) {
		return NewLocalBackend(opts, settings)
	}, "file", "direct")
}

// Name returns the identifier name defined for this backend
func (*LocalBackend) Name() string {
	return Kind
}

// Open verifies the configured directory and keeps a handle to it.
func (lb *LocalBackend) Open(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.root != nil {
		return nil
	}

	info, err := os.Stat(lb.options.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data.ConfigError(Kind, fmt.Errorf("directory '%s' does not exist", lb.options.Path))
		}
		return data.BackendError("open", lb.options.Path, err)
	}
	if !info.IsDir() {
		return data.NotDirectory("open", lb.options.Path)
	}

	root, err := os.OpenRoot(lb.options.Path)
	if err != nil {
		return data.BackendError("open", lb.options.Path, err)
	}

	lb.root = root
	lb.settings.Logger.Debug("Open: serving '%s'", lb.options.Path)
	return nil
}

// Close releases the directory handle. The files themselves persist.
func (lb *LocalBackend) Close(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.root == nil {
		return nil
	}
	err := lb.root.Close()
	lb.root = nil
	return err
}

func (lb *LocalBackend) Capabilities() *backend.Capabilities {
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
		MaxObjectSize: lb.options.MaxObjectSize,
		MinDepth:      lb.options.MinDepth,
	}
}

// handle returns the open root and the root-relative name of p.
func (lb *LocalBackend) handle(op, p string) (*os.Root, string, error) {
	key, err := data.CleanPath(p)
	if err != nil {
		return nil, "", err
	}

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if lb.root == nil {
		return nil, "", data.NewError(data.ErrClosed, op, p, nil).WithMessage("backend is not open")
	}
	if key == "" {
		key = "."
	}
	return lb.root, key, nil
}

func mapError(op, p string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return data.NotFound(op, p)
	case errors.Is(err, os.ErrExist):
		return data.Exists(op, p)
	case errors.Is(err, syscall.ENOTDIR):
		return data.NotDirectory(op, p)
	}
	return data.BackendError(op, p, err)
}
