package folders

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
	"github.com/mwantia/folders/log"
	"github.com/mwantia/folders/mount"
)

// FileSystem routes virtual paths to mounted backends. The mount with the
// longest matching prefix wins; paths above every mount list the mount
// points as folders.
type FileSystem struct {
	mu     sync.RWMutex
	mounts map[string]*mount.Mount
	log    *log.Logger
}

// MountInfo describes one mounted backend.
type MountInfo struct {
	Path         string                `json:"path"`
	Kind         string                `json:"kind"`
	ReadOnly     bool                  `json:"read_only"`
	MountedAt    time.Time             `json:"mounted_at"`
	Capabilities *backend.Capabilities `json:"capabilities"`
	Streams      int                   `json:"streams"`
}

func New(logger *log.Logger) *FileSystem {
	if logger == nil {
		logger = log.Discard()
	}
	return &FileSystem{
		mounts: make(map[string]*mount.Mount),
		log:    logger,
	}
}

// Mount opens b and attaches it at path. The table stays usable while the
// backend opens. On error the caller keeps ownership of b.
func (fs *FileSystem) Mount(ctx context.Context, path string, b backend.Backend, opts ...mount.Option) error {
	key, err := data.CleanPath(path)
	if err != nil {
		return err
	}
	if b == nil {
		return data.NewError(data.ErrConfig, "mount", data.JoinPath(key), nil).WithMessage("backend is required")
	}
	if fs.mounted(key) {
		return data.NewError(data.ErrAlreadyMounted, "mount", data.JoinPath(key), nil)
	}

	opts = append([]mount.Option{mount.WithLogger(fs.log.Named("mount/" + b.Name()).With("path", data.JoinPath(key)))}, opts...)
	m, err := mount.NewMount(key, b, opts...)
	if err != nil {
		return err
	}
	if err := m.Mount(ctx); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Another mount may have won while the backend was opening
	if _, exists := fs.mounts[key]; exists {
		return data.NewError(data.ErrAlreadyMounted, "mount", data.JoinPath(key), nil)
	}
	fs.mounts[key] = m
	fs.log.Info("Mounted '%s' backend at '%s'", b.Name(), m.Path)
	return nil
}

func (fs *FileSystem) mounted(key string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, exists := fs.mounts[key]
	return exists
}

// Unmount detaches the mount at path. Child mounts and open streams make
// the mount busy, force only overrides the latter.
func (fs *FileSystem) Unmount(ctx context.Context, path string, force bool) error {
	key, err := data.CleanPath(path)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	m, exists := fs.mounts[key]
	if !exists {
		return data.NewError(data.ErrNotMounted, "unmount", data.JoinPath(key), nil)
	}
	if fs.hasChildMounts(key) {
		return data.NewError(data.ErrMountBusy, "unmount", m.Path, nil).WithMessage("'%s' has child mounts", m.Path)
	}

	if err := m.Unmount(ctx, force); err != nil {
		return err
	}

	delete(fs.mounts, key)
	fs.log.Info("Unmounted '%s'", m.Path)
	return nil
}

// Close force-unmounts everything, deepest mount points first.
func (fs *FileSystem) Close(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	keys := make([]string, 0, len(fs.mounts))
	for key := range fs.mounts {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return data.Depth(b) - data.Depth(a)
	})

	errs := data.Errors{}
	for _, key := range keys {
		if err := fs.mounts[key].Unmount(ctx, true); err != nil {
			errs.Add(err)
		}
		delete(fs.mounts, key)
	}
	return errs.Errors()
}

// Mounts returns all mounts sorted by path.
func (fs *FileSystem) Mounts() []MountInfo {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	infos := make([]MountInfo, 0, len(fs.mounts))
	for _, m := range fs.mounts {
		infos = append(infos, MountInfo{
			Path:         m.Path,
			Kind:         m.Backend.Name(),
			ReadOnly:     m.Options.ReadOnly,
			MountedAt:    m.MountTime,
			Capabilities: m.Capabilities(),
			Streams:      len(m.Streams()),
		})
	}
	slices.SortFunc(infos, func(a, b MountInfo) int {
		return strings.Compare(a.Path, b.Path)
	})
	return infos
}

// Capabilities returns the effective descriptor of the mount serving p.
func (fs *FileSystem) Capabilities(p string) (*backend.Capabilities, error) {
	m, _, err := fs.resolve("caps", p)
	if err != nil {
		return nil, err
	}
	return m.Capabilities(), nil
}

// resolve returns the mount serving p and the path relative to it.
func (fs *FileSystem) resolve(op, p string) (*mount.Mount, string, error) {
	key, err := data.CleanPath(p)
	if err != nil {
		return nil, "", err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	best, found := "", false
	for mountPoint := range fs.mounts {
		if hasPathPrefix(key, mountPoint) && (!found || len(mountPoint) > len(best)) {
			best, found = mountPoint, true
		}
	}
	if !found {
		return nil, "", data.NewError(data.ErrNotMounted, op, data.JoinPath(key), nil)
	}

	return fs.mounts[best], data.JoinPath(strings.TrimPrefix(key, best)), nil
}

// childMounts returns the next segment of every mount point below key.
func (fs *FileSystem) childMounts(key string) []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var names []string
	for mountPoint := range fs.mounts {
		if mountPoint == key || !hasPathPrefix(mountPoint, key) {
			continue
		}
		rest := data.Segments(strings.TrimPrefix(mountPoint, key))
		if !slices.Contains(names, rest[0]) {
			names = append(names, rest[0])
		}
	}
	slices.Sort(names)
	return names
}

// Must be called with lock held.
func (fs *FileSystem) hasChildMounts(parent string) bool {
	for mountPoint := range fs.mounts {
		if mountPoint != parent && hasPathPrefix(mountPoint, parent) {
			return true
		}
	}
	return false
}

func hasPathPrefix(p, prefix string) bool {
	if prefix == "" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Ls lists p. Mount points directly below p are merged into the listing
// as folders, so the root of a table without a root mount lists every
// top level mount point.
func (fs *FileSystem) Ls(ctx context.Context, p string) ([]*data.Entry, error) {
	key, err := data.CleanPath(p)
	if err != nil {
		return nil, err
	}
	dir := data.JoinPath(key)
	children := fs.childMounts(key)

	var entries []*data.Entry
	m, rel, err := fs.resolve("ls", dir)
	switch {
	case err == nil:
		entries, err = m.Ls(ctx, rel)
		if err != nil && !(len(children) > 0 && data.KindOf(err) == data.KindNotFound) {
			return nil, err
		}
		rebase(m.Path, entries)
	case len(children) == 0:
		return nil, err
	}

	for _, mountPoint := range backend.FolderListing(dir, children, map[string]any{"mountPoint": true}) {
		if !slices.ContainsFunc(entries, func(e *data.Entry) bool { return e.Name == mountPoint.Name }) {
			entries = append(entries, mountPoint)
		}
	}
	return entries, nil
}

// rebase turns mount relative entry paths into table paths.
func rebase(mountPath string, entries []*data.Entry) {
	if mountPath == "/" {
		return
	}
	for _, entry := range entries {
		if entry.URI == entry.FullPath {
			entry.URI = data.JoinPath(mountPath, entry.URI)
		}
		entry.FullPath = data.JoinPath(mountPath, entry.FullPath)
	}
}

func (fs *FileSystem) Cat(ctx context.Context, p string) (*data.CatResult, error) {
	m, rel, err := fs.resolve("cat", p)
	if err != nil {
		return nil, err
	}
	return m.Cat(ctx, rel)
}

func (fs *FileSystem) RangeCat(ctx context.Context, p string, rng data.Range) (*data.CatResult, error) {
	m, rel, err := fs.resolve("range_cat", p)
	if err != nil {
		return nil, err
	}
	return m.RangeCat(ctx, rel, rng)
}

func (fs *FileSystem) Write(ctx context.Context, p string, r io.Reader, size int64) (data.WriteResult, error) {
	m, rel, err := fs.resolve("write", p)
	if err != nil {
		return nil, err
	}
	return m.Write(ctx, rel, r, size)
}

func (fs *FileSystem) WriteFunc(ctx context.Context, p string, produce func(w io.Writer) error) (data.WriteResult, error) {
	m, rel, err := fs.resolve("write", p)
	if err != nil {
		return nil, err
	}
	return m.WriteFunc(ctx, rel, produce)
}

func (fs *FileSystem) Unlink(ctx context.Context, p string) error {
	m, rel, err := fs.resolve("unlink", p)
	if err != nil {
		return err
	}
	return m.Unlink(ctx, rel)
}

func (fs *FileSystem) Mkdir(ctx context.Context, p string) error {
	m, rel, err := fs.resolve("mkdir", p)
	if err != nil {
		return err
	}
	return m.Mkdir(ctx, rel)
}

// Rmdir refuses mount points and directories containing one.
func (fs *FileSystem) Rmdir(ctx context.Context, p string) error {
	m, rel, err := fs.resolve("rmdir", p)
	if err != nil {
		return err
	}

	key, _ := data.CleanPath(p)
	fs.mu.RLock()
	_, isMountPoint := fs.mounts[key]
	busy := isMountPoint || fs.hasChildMounts(key)
	fs.mu.RUnlock()
	if busy {
		return data.NewError(data.ErrMountBusy, "rmdir", data.JoinPath(key), nil).
			WithMessage("'%s' contains a mount point", data.JoinPath(key))
	}

	return m.Rmdir(ctx, rel)
}
