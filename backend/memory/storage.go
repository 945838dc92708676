package memory

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

func (mb *MemoryBackend) Ls(ctx context.Context, path string) ([]*data.Entry, error) {
	key, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	switch kind, _ := mb.statUnsafe(key); kind {
	case kindMissing:
		return nil, data.NotFound("ls", path)
	case kindFile:
		return nil, data.NotDirectory("ls", path)
	}

	prefix := ""
	if key != "" {
		prefix = key + "/"
	}

	return backend.PrefixListing(data.JoinPath(key), prefix, "/", mb.scanUnsafe(prefix), nil), nil
}

func (mb *MemoryBackend) Cat(ctx context.Context, path string) (*data.CatResult, error) {
	return mb.RangeCat(ctx, path, data.Range{})
}

func (mb *MemoryBackend) RangeCat(ctx context.Context, path string, rng data.Range) (*data.CatResult, error) {
	key, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}

	mb.mu.RLock()
	kind, obj := mb.statUnsafe(key)
	mb.mu.RUnlock()

	switch kind {
	case kindMissing:
		return nil, data.NotFound("cat", path)
	case kindFolder:
		return nil, data.IsDirectory("cat", path)
	}

	// Content is replaced on write, never mutated, so the slice is safe to share
	content := obj.content
	start := min(rng.Offset, int64(len(content)))
	end := int64(len(content))
	if rng.Length > 0 {
		end = min(start+rng.Length, end)
	}
	part := content[start:end]

	return backend.NewCatResult(ctx, io.NopCloser(bytes.NewReader(part)), int64(len(part)), data.Base(key)), nil
}

func (mb *MemoryBackend) Write(ctx context.Context, path string, r io.Reader, size int64) (data.WriteResult, error) {
	key, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, data.IsDirectory("write", path)
	}

	content, err := backend.LimitedBuffer(r, mb.options.MaxObjectSize)
	if err != nil {
		return nil, data.BackendError("write", path, err)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if kind, _ := mb.statUnsafe(key); kind == kindFolder {
		return nil, data.IsDirectory("write", path)
	}
	if mb.fileAncestorUnsafe(key) {
		return nil, data.NotDirectory("write", path)
	}

	mb.objects.Set(key, &object{
		content:  content,
		modified: time.Now(),
	})
	return data.WriteSuccess(data.JoinPath(key)), nil
}

func (mb *MemoryBackend) Unlink(ctx context.Context, path string) error {
	key, err := data.CleanPath(path)
	if err != nil {
		return err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	switch kind, _ := mb.statUnsafe(key); kind {
	case kindMissing:
		return data.NotFound("unlink", path)
	case kindFolder:
		return data.IsDirectory("unlink", path)
	}

	mb.objects.Delete(key)
	return nil
}

func (mb *MemoryBackend) Mkdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityMkdir, path, mb.options.MinDepth); err != nil {
		return err
	}

	key, err := data.CleanPath(path)
	if err != nil {
		return err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if kind, _ := mb.statUnsafe(key); kind != kindMissing {
		return data.Exists("mkdir", path)
	}
	if mb.fileAncestorUnsafe(key) {
		return data.NotDirectory("mkdir", path)
	}

	mb.objects.Set(key+"/", &object{modified: time.Now()})
	return nil
}

func (mb *MemoryBackend) Rmdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityRmdir, path, mb.options.MinDepth); err != nil {
		return err
	}

	key, err := data.CleanPath(path)
	if err != nil {
		return err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	switch kind, _ := mb.statUnsafe(key); kind {
	case kindMissing:
		return data.NotFound("rmdir", path)
	case kindFile:
		return data.NotDirectory("rmdir", path)
	}

	removed := mb.deletePrefixUnsafe(key + "/")
	mb.settings.Logger.Debug("Rmdir: removed %d keys below '%s'", removed, key)
	return nil
}
