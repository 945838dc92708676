package consul

import (
	"bytes"
	"context"
	"io"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

func (cb *ConsulBackend) Ls(ctx context.Context, path string) ([]*data.Entry, error) {
	key, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}

	prefix := cb.dirPrefix(key)
	pairs, _, err := cb.kv.List(prefix, queryOptions(ctx))
	if err != nil {
		return nil, data.BackendError("ls", path, err)
	}

	if key != "" && len(pairs) == 0 {
		pair, _, err := cb.kv.Get(cb.buildKey(key), queryOptions(ctx))
		if err != nil {
			return nil, data.BackendError("ls", path, err)
		}
		if pair != nil {
			return nil, data.NotDirectory("ls", path)
		}
		return nil, data.NotFound("ls", path)
	}

	objects := make([]backend.RawObject, 0, len(pairs))
	for _, pair := range pairs {
		objects = append(objects, backend.RawObject{
			Key:  pair.Key,
			Size: int64(len(pair.Value)),
			Meta: map[string]any{
				"modifyIndex": pair.ModifyIndex,
				"flags":       pair.Flags,
			},
		})
	}
	return backend.PrefixListing(data.JoinPath(key), prefix, "/", objects, nil), nil
}

func (cb *ConsulBackend) Cat(ctx context.Context, path string) (*data.CatResult, error) {
	return cb.RangeCat(ctx, path, data.Range{})
}

func (cb *ConsulBackend) RangeCat(ctx context.Context, path string, rng data.Range) (*data.CatResult, error) {
	pair, err := cb.file(ctx, "cat", path)
	if err != nil {
		return nil, err
	}

	content := pair.Value
	start := min(rng.Offset, int64(len(content)))
	end := int64(len(content))
	if rng.Length > 0 {
		end = min(start+rng.Length, end)
	}
	part := content[start:end]

	return backend.NewCatResult(ctx, io.NopCloser(bytes.NewReader(part)), int64(len(part)), data.Base(path)), nil
}

func (cb *ConsulBackend) Write(ctx context.Context, path string, r io.Reader, size int64) (data.WriteResult, error) {
	key, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, data.IsDirectory("write", path)
	}

	isDir, err := cb.hasChildren(ctx, key)
	if err != nil {
		return nil, data.BackendError("write", path, err)
	}
	if isDir {
		return nil, data.IsDirectory("write", path)
	}
	if err := cb.checkParents(ctx, "write", path, key); err != nil {
		return nil, err
	}

	content, err := backend.LimitedBuffer(r, cb.options.MaxObjectSize)
	if err != nil {
		return nil, data.BackendError("write", path, err)
	}

	if _, err := cb.kv.Put(&api.KVPair{
		Key:   cb.buildKey(key),
		Value: content,
	}, writeOptions(ctx)); err != nil {
		return nil, data.BackendError("write", path, err)
	}
	return data.WriteSuccess(data.JoinPath(key)), nil
}

func (cb *ConsulBackend) Unlink(ctx context.Context, path string) error {
	pair, err := cb.file(ctx, "unlink", path)
	if err != nil {
		return err
	}

	_, err = cb.kv.Delete(pair.Key, writeOptions(ctx))
	return data.BackendError("unlink", path, err)
}

func (cb *ConsulBackend) Mkdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityMkdir, path, cb.options.MinDepth); err != nil {
		return err
	}

	key, err := data.CleanPath(path)
	if err != nil {
		return err
	}

	pair, _, err := cb.kv.Get(cb.buildKey(key), queryOptions(ctx))
	if err != nil {
		return data.BackendError("mkdir", path, err)
	}
	isDir, err := cb.hasChildren(ctx, key)
	if err != nil {
		return data.BackendError("mkdir", path, err)
	}
	if pair != nil || isDir {
		return data.Exists("mkdir", path)
	}
	if err := cb.checkParents(ctx, "mkdir", path, key); err != nil {
		return err
	}

	_, err = cb.kv.Put(&api.KVPair{Key: cb.dirPrefix(key)}, writeOptions(ctx))
	return data.BackendError("mkdir", path, err)
}

func (cb *ConsulBackend) Rmdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityRmdir, path, cb.options.MinDepth); err != nil {
		return err
	}

	key, err := data.CleanPath(path)
	if err != nil {
		return err
	}

	isDir, err := cb.hasChildren(ctx, key)
	if err != nil {
		return data.BackendError("rmdir", path, err)
	}
	if !isDir {
		pair, _, err := cb.kv.Get(cb.buildKey(key), queryOptions(ctx))
		if err != nil {
			return data.BackendError("rmdir", path, err)
		}
		if pair != nil {
			return data.NotDirectory("rmdir", path)
		}
		return data.NotFound("rmdir", path)
	}

	_, err = cb.kv.DeleteTree(cb.dirPrefix(key), writeOptions(ctx))
	return data.BackendError("rmdir", path, err)
}

// file fetches the pair of a file key, telling missing keys and folders apart.
func (cb *ConsulBackend) file(ctx context.Context, op, path string) (*api.KVPair, error) {
	key, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, data.IsDirectory(op, path)
	}

	pair, _, err := cb.kv.Get(cb.buildKey(key), queryOptions(ctx))
	if err != nil {
		return nil, data.BackendError(op, path, err)
	}
	if pair != nil {
		return pair, nil
	}

	isDir, err := cb.hasChildren(ctx, key)
	if err != nil {
		return nil, data.BackendError(op, path, err)
	}
	if isDir {
		return nil, data.IsDirectory(op, path)
	}
	return nil, data.NotFound(op, path)
}

// hasChildren reports whether key is a folder, either by marker or by deeper keys.
func (cb *ConsulBackend) hasChildren(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}

	keys, _, err := cb.kv.Keys(cb.dirPrefix(key), "/", queryOptions(ctx))
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// checkParents fails with not-a-directory when a parent of key is a file.
func (cb *ConsulBackend) checkParents(ctx context.Context, op, path, key string) error {
	for _, parent := range data.Parents(key) {
		pair, _, err := cb.kv.Get(cb.buildKey(parent), queryOptions(ctx))
		if err != nil {
			return data.BackendError(op, path, err)
		}
		if pair != nil {
			return data.NotDirectory(op, path)
		}
	}
	return nil
}
