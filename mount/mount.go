package mount

import (
	"context"
	"sync"
	"time"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

// Mount wraps one backend behind the uniform operations. The capability
// descriptor is consulted before any backend call.
type Mount struct {
	mu      sync.RWMutex
	streams map[string]*stream

	Path      string
	Options   *Options
	MountTime time.Time // When the mount was created.
	Backend   backend.Backend

	caps *backend.Capabilities
}

func NewMount(path string, b backend.Backend, opts ...Option) (*Mount, error) {
	if b == nil {
		return nil, data.NewError(data.ErrConfig, "mount", path, nil).WithMessage("backend is required")
	}

	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, data.NewError(data.ErrConfig, "mount", path, err)
		}
	}

	caps := b.Capabilities()
	if caps == nil {
		caps = backend.NewCapabilities()
	}
	if options.ReadOnly {
		caps = caps.Without(backend.CapabilityWrite, backend.CapabilityUnlink, backend.CapabilityMkdir, backend.CapabilityRmdir)
	}

	return &Mount{
		streams:   make(map[string]*stream),
		Path:      data.JoinPath(path),
		Options:   options,
		MountTime: time.Now(),
		Backend:   b,
		caps:      caps,
	}, nil
}

// Capabilities returns the effective descriptor, read-only mounts drop
// every mutating capability.
func (m *Mount) Capabilities() *backend.Capabilities {
	return m.caps
}

func (m *Mount) Mount(ctx context.Context) error {
	m.Options.Logger.Debug("Mount: opening '%s' backend at '%s'", m.Backend.Name(), m.Path)
	if err := m.Backend.Open(ctx); err != nil {
		return data.BackendError("mount", m.Path, err)
	}
	return nil
}

// Unmount closes the backend. Open cat streams make the mount busy unless
// force is set, in which case they are closed first.
func (m *Mount) Unmount(ctx context.Context, force bool) error {
	m.mu.RLock()
	open := make([]*stream, 0, len(m.streams))
	for _, s := range m.streams {
		open = append(open, s)
	}
	m.mu.RUnlock()

	if len(open) > 0 && !force {
		return data.NewError(data.ErrMountBusy, "unmount", m.Path, nil).
			WithMessage("%d streams still open", len(open))
	}

	errs := data.Errors{}
	for _, s := range open {
		m.Options.Logger.Warn("Unmount: closing stream '%s' for '%s'", s.info.ID, s.info.Path)
		if err := s.Close(); err != nil {
			errs.Add(err)
		}
	}

	if err := m.Backend.Close(ctx); err != nil {
		errs.Add(data.BackendError("unmount", m.Path, err))
	}
	return errs.Errors()
}

// StreamInfo describes one cat stream that has not been closed yet.
type StreamInfo struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	OpenedAt time.Time `json:"opened_at"`
}

// Streams returns all open cat streams.
func (m *Mount) Streams() []StreamInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]StreamInfo, 0, len(m.streams))
	for _, s := range m.streams {
		infos = append(infos, s.info)
	}
	return infos
}

func (m *Mount) track(s *stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[s.info.ID] = s
}

func (m *Mount) untrack(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, id)
}
