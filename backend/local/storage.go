package local

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

func (lb *LocalBackend) Ls(ctx context.Context, p string) ([]*data.Entry, error) {
	root, key, err := lb.handle("ls", p)
	if err != nil {
		return nil, err
	}

	dir, err := root.Open(key)
	if err != nil {
		return nil, mapError("ls", p, err)
	}
	defer dir.Close()

	info, err := dir.Stat()
	if err != nil {
		return nil, mapError("ls", p, err)
	}
	if !info.IsDir() {
		return nil, data.NotDirectory("ls", p)
	}

	children, err := dir.ReadDir(-1)
	if err != nil {
		return nil, mapError("ls", p, err)
	}

	parent := data.JoinPath(p)
	entries := make([]*data.Entry, 0, len(children))
	for _, child := range children {
		info, err := child.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		link := info.Mode()&os.ModeSymlink != 0
		if link {
			// Links resolving outside the root or nowhere stay leaves
			if target, err := root.Stat(path.Join(key, child.Name())); err == nil {
				info = linkInfo{FileInfo: target, name: child.Name()}
			}
		}

		var entry *data.Entry
		if info.IsDir() {
			entry = data.NewFolder(parent, info.Name())
		} else {
			entry = data.NewFile(parent, info.Name(), info.Size())
		}
		entry.WithTime(info.ModTime())
		entry.Meta["permissions"] = info.Mode().Perm().String()
		if link {
			entry.Meta["symlink"] = true
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (lb *LocalBackend) Cat(ctx context.Context, p string) (*data.CatResult, error) {
	return lb.RangeCat(ctx, p, data.Range{})
}

func (lb *LocalBackend) RangeCat(ctx context.Context, p string, rng data.Range) (*data.CatResult, error) {
	root, key, err := lb.handle("cat", p)
	if err != nil {
		return nil, err
	}

	f, err := root.Open(key)
	if err != nil {
		return nil, mapError("cat", p, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mapError("cat", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, data.IsDirectory("cat", p)
	}

	offset := min(rng.Offset, info.Size())
	size := info.Size() - offset
	if rng.Length > 0 {
		size = min(size, rng.Length)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, mapError("cat", p, err)
	}

	rc := struct {
		io.Reader
		io.Closer
	}{io.LimitReader(f, size), f}
	return backend.NewCatResult(ctx, rc, size, info.Name()), nil
}

// Write streams into a temporary sibling and renames it into place, so a
// failed write never leaves a truncated file behind. Missing parent
// directories are created like an object store would imply them.
func (lb *LocalBackend) Write(ctx context.Context, p string, r io.Reader, size int64) (data.WriteResult, error) {
	root, key, err := lb.handle("write", p)
	if err != nil {
		return nil, err
	}
	if key == "." {
		return nil, data.IsDirectory("write", p)
	}

	if info, err := root.Stat(key); err == nil && info.IsDir() {
		return nil, data.IsDirectory("write", p)
	}
	for _, parent := range data.Parents(key) {
		if info, err := root.Stat(parent); err == nil && !info.IsDir() {
			return nil, data.NotDirectory("write", p)
		}
	}
	if err := root.MkdirAll(path.Dir(key), 0o755); err != nil {
		return nil, mapError("write", p, err)
	}

	tmp := path.Join(path.Dir(key), ".folders-"+uuid.NewString()+".tmp")
	f, err := root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, mapError("write", p, err)
	}

	src := r
	if limit := lb.options.MaxObjectSize; limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, err := backend.Copy(ctx, f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && lb.options.MaxObjectSize > 0 && written > lb.options.MaxObjectSize {
		err = data.ErrTooLarge
	}
	if err == nil {
		err = root.Rename(tmp, key)
	}
	if err != nil {
		root.Remove(tmp)
		return nil, data.BackendError("write", p, err)
	}

	lb.settings.Logger.Debug("Write: stored %d bytes at '%s'", written, key)
	return data.WriteSuccess(data.JoinPath(key)), nil
}

func (lb *LocalBackend) Unlink(ctx context.Context, p string) error {
	root, key, err := lb.handle("unlink", p)
	if err != nil {
		return err
	}

	info, err := root.Stat(key)
	if err != nil {
		return mapError("unlink", p, err)
	}
	if info.IsDir() {
		return data.IsDirectory("unlink", p)
	}
	return mapError("unlink", p, root.Remove(key))
}

func (lb *LocalBackend) Mkdir(ctx context.Context, p string) error {
	if err := backend.CheckDepth(backend.CapabilityMkdir, p, lb.options.MinDepth); err != nil {
		return err
	}

	root, key, err := lb.handle("mkdir", p)
	if err != nil {
		return err
	}
	return mapError("mkdir", p, root.Mkdir(key, 0o755))
}

func (lb *LocalBackend) Rmdir(ctx context.Context, p string) error {
	if err := backend.CheckDepth(backend.CapabilityRmdir, p, lb.options.MinDepth); err != nil {
		return err
	}

	root, key, err := lb.handle("rmdir", p)
	if err != nil {
		return err
	}

	info, err := root.Stat(key)
	if err != nil {
		return mapError("rmdir", p, err)
	}
	if !info.IsDir() {
		return data.NotDirectory("rmdir", p)
	}
	return mapError("rmdir", p, root.RemoveAll(key))
}

// linkInfo reports the target of a symlink under the name of the link.
type linkInfo struct {
	os.FileInfo
	name string
}

func (li linkInfo) Name() string {
	return li.name
}
