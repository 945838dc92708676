package sftp

import (
	"context"
	"errors"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
	"github.com/pkg/sftp"
)

func (sb *SftpBackend) Ls(ctx context.Context, p string) ([]*data.Entry, error) {
	key, remote, err := sb.remotePath(p)
	if err != nil {
		return nil, err
	}

	c, err := sb.acquire(ctx, "ls", p)
	if err != nil {
		return nil, err
	}
	defer c.release()

	info, err := c.Stat(remote)
	if err != nil {
		return nil, mapError("ls", p, err)
	}
	if !info.IsDir() {
		return nil, data.NotDirectory("ls", p)
	}

	infos, err := c.ReadDir(remote)
	if err != nil {
		return nil, mapError("ls", p, err)
	}

	dir := data.JoinPath(key)
	entries := make([]*data.Entry, 0, len(infos))
	for _, info := range infos {
		link := info.Mode()&os.ModeSymlink != 0
		if link {
			// Stat follows the link; broken links stay leaves
			if target, err := c.Stat(path.Join(remote, info.Name())); err == nil {
				info = linkInfo{FileInfo: target, name: info.Name()}
			}
		}

		var entry *data.Entry
		if info.IsDir() {
			entry = data.NewFolder(dir, info.Name())
		} else {
			entry = data.NewFile(dir, info.Name(), info.Size())
		}

		entry.WithTime(info.ModTime())
		entry.Meta["mode"] = uint32(info.Mode())
		entry.Meta["permissions"] = info.Mode().Perm().String()
		if stat, ok := info.Sys().(*sftp.FileStat); ok {
			entry.Meta["uid"] = stat.UID
			entry.Meta["gid"] = stat.GID
		}
		if link {
			entry.Meta["symlink"] = true
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (sb *SftpBackend) Cat(ctx context.Context, p string) (*data.CatResult, error) {
	return sb.RangeCat(ctx, p, data.Range{})
}

// readCloser reads part of a remote file and closes the file itself.
type readCloser struct {
	io.Reader
	io.Closer
}

func (sb *SftpBackend) RangeCat(ctx context.Context, p string, rng data.Range) (*data.CatResult, error) {
	key, remote, err := sb.remotePath(p)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, data.IsDirectory("cat", p)
	}

	c, err := sb.acquire(ctx, "cat", p)
	if err != nil {
		return nil, err
	}

	info, err := c.Stat(remote)
	if err != nil {
		c.release()
		return nil, mapError("cat", p, err)
	}
	if info.IsDir() {
		c.release()
		return nil, data.IsDirectory("cat", p)
	}

	f, err := c.Open(remote)
	if err != nil {
		c.release()
		return nil, mapError("cat", p, err)
	}

	size := info.Size()
	offset := min(rng.Offset, size)
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			c.release()
			return nil, data.BackendError("cat", p, err)
		}
	}

	length := size - offset
	if rng.Length > 0 {
		length = min(rng.Length, length)
	}

	rc := &readCloser{
		Reader: io.LimitReader(f, length),
		Closer: f,
	}
	return backend.NewCatResult(ctx, rc, length, info.Name(), c.release), nil
}

func (sb *SftpBackend) Write(ctx context.Context, p string, r io.Reader, size int64) (data.WriteResult, error) {
	key, remote, err := sb.remotePath(p)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, data.IsDirectory("write", p)
	}

	c, err := sb.acquire(ctx, "write", p)
	if err != nil {
		return nil, err
	}
	defer c.release()

	if info, err := c.Stat(remote); err == nil && info.IsDir() {
		return nil, data.IsDirectory("write", p)
	}

	if err := c.MkdirAll(path.Dir(remote)); err != nil {
		return nil, mapError("write", p, err)
	}

	tmp := path.Join(path.Dir(remote), ".folders-"+uuid.NewString()+".tmp")
	f, err := c.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return nil, mapError("write", p, err)
	}

	written, err := backend.Copy(ctx, f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = c.replace(tmp, remote)
	}
	if err != nil {
		c.Remove(tmp)
		return nil, data.BackendError("write", p, err)
	}

	sb.settings.Logger.Debug("Write: stored %d bytes at '%s'", written, remote)
	return data.WriteSuccess(data.JoinPath(key)), nil
}

func (sb *SftpBackend) Unlink(ctx context.Context, p string) error {
	key, remote, err := sb.remotePath(p)
	if err != nil {
		return err
	}
	if key == "" {
		return data.IsDirectory("unlink", p)
	}

	c, err := sb.acquire(ctx, "unlink", p)
	if err != nil {
		return err
	}
	defer c.release()

	info, err := c.Stat(remote)
	if err != nil {
		return mapError("unlink", p, err)
	}
	if info.IsDir() {
		return data.IsDirectory("unlink", p)
	}
	return mapError("unlink", p, c.Remove(remote))
}

func (sb *SftpBackend) Mkdir(ctx context.Context, p string) error {
	if err := backend.CheckDepth(backend.CapabilityMkdir, p, sb.options.MinDepth); err != nil {
		return err
	}

	_, remote, err := sb.remotePath(p)
	if err != nil {
		return err
	}

	c, err := sb.acquire(ctx, "mkdir", p)
	if err != nil {
		return err
	}
	defer c.release()

	if _, err := c.Stat(remote); err == nil {
		return data.Exists("mkdir", p)
	}
	return mapError("mkdir", p, c.MkdirAll(remote))
}

func (sb *SftpBackend) Rmdir(ctx context.Context, p string) error {
	if err := backend.CheckDepth(backend.CapabilityRmdir, p, sb.options.MinDepth); err != nil {
		return err
	}

	_, remote, err := sb.remotePath(p)
	if err != nil {
		return err
	}

	c, err := sb.acquire(ctx, "rmdir", p)
	if err != nil {
		return err
	}
	defer c.release()

	info, err := c.Stat(remote)
	if err != nil {
		return mapError("rmdir", p, err)
	}
	if !info.IsDir() {
		return data.NotDirectory("rmdir", p)
	}
	return mapError("rmdir", p, c.RemoveAll(remote))
}

// replace renames tmp over remote. Servers without the posix-rename
// extension get a remove followed by a plain rename.
func (c *conn) replace(tmp, remote string) error {
	if err := c.PosixRename(tmp, remote); err == nil {
		return nil
	}
	if err := c.Remove(remote); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return c.Rename(tmp, remote)
}

// linkInfo reports the target of a symlink under the name of the link.
type linkInfo struct {
	os.FileInfo
	name string
}

func (li linkInfo) Name() string {
	return li.name
}

func mapError(op, p string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return data.NewError(data.ErrNotExist, op, p, err)
	case errors.Is(err, os.ErrExist):
		return data.NewError(data.ErrExist, op, p, err)
	}
	return data.BackendError(op, p, err)
}
