package redis

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	goredis "github.com/go-redis/redis/v8"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

// deleteBatchSize bounds the keys removed by a single DEL.
const deleteBatchSize = 500

func (rb *RedisBackend) Ls(ctx context.Context, path string) ([]*data.Entry, error) {
	key, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}

	prefix := rb.dirPrefix(key)
	keys, err := rb.scan(ctx, prefix, 0)
	if err != nil {
		return nil, data.BackendError("ls", path, err)
	}

	if key != "" && len(keys) == 0 {
		exists, err := rb.client.Exists(ctx, rb.buildKey(key)).Result()
		if err != nil {
			return nil, data.BackendError("ls", path, err)
		}
		if exists > 0 {
			return nil, data.NotDirectory("ls", path)
		}
		return nil, data.NotFound("ls", path)
	}

	objects, err := rb.describe(ctx, prefix, keys)
	if err != nil {
		return nil, data.BackendError("ls", path, err)
	}
	return backend.PrefixListing(data.JoinPath(key), prefix, "/", objects, nil), nil
}

// describe fetches the length of every direct child in one pipeline.
// Deeper keys only contribute their folder name and are not queried.
func (rb *RedisBackend) describe(ctx context.Context, prefix string, keys []string) ([]backend.RawObject, error) {
	slices.Sort(keys)
	keys = slices.Compact(keys)

	objects := make([]backend.RawObject, len(keys))
	lengths := make(map[int]*goredis.IntCmd)

	pipe := rb.client.Pipeline()
	for i, k := range keys {
		objects[i] = backend.RawObject{Key: k}
		if rel := k[len(prefix):]; rel != "" && !strings.Contains(rel, "/") {
			lengths[i] = pipe.StrLen(ctx, k)
		}
	}
	if len(lengths) == 0 {
		return objects, nil
	}

	// Non-string keys fail individually and are listed with size 0
	if _, err := pipe.Exec(ctx); err != nil && !isWrongType(err) {
		return nil, err
	}
	for i, cmd := range lengths {
		if n, err := cmd.Result(); err == nil {
			objects[i].Size = n
		}
	}
	return objects, nil
}

func (rb *RedisBackend) Cat(ctx context.Context, path string) (*data.CatResult, error) {
	return rb.RangeCat(ctx, path, data.Range{})
}

func (rb *RedisBackend) RangeCat(ctx context.Context, path string, rng data.Range) (*data.CatResult, error) {
	key, size, err := rb.file(ctx, "cat", path)
	if err != nil {
		return nil, err
	}

	if rng.Offset >= size && (rng.Offset > 0 || rng.Length > 0) {
		return backend.NewCatResult(ctx, io.NopCloser(bytes.NewReader(nil)), 0, data.Base(key)), nil
	}

	end := rng.End()
	if end < 0 || end >= size {
		end = size - 1
	}

	content, err := rb.client.GetRange(ctx, rb.buildKey(key), rng.Offset, end).Bytes()
	if err != nil {
		return nil, data.BackendError("cat", path, err)
	}
	return backend.NewCatResult(ctx, io.NopCloser(bytes.NewReader(content)), int64(len(content)), data.Base(key)), nil
}

func (rb *RedisBackend) Write(ctx context.Context, path string, r io.Reader, size int64) (data.WriteResult, error) {
	key, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, data.IsDirectory("write", path)
	}

	isDir, err := rb.hasChildren(ctx, key)
	if err != nil {
		return nil, data.BackendError("write", path, err)
	}
	if isDir {
		return nil, data.IsDirectory("write", path)
	}
	if err := rb.checkParents(ctx, "write", path, key); err != nil {
		return nil, err
	}

	content, err := backend.LimitedBuffer(r, rb.options.MaxObjectSize)
	if err != nil {
		return nil, data.BackendError("write", path, err)
	}

	if err := rb.client.Set(ctx, rb.buildKey(key), content, 0).Err(); err != nil {
		return nil, data.BackendError("write", path, err)
	}
	return data.WriteSuccess(data.JoinPath(key)), nil
}

func (rb *RedisBackend) Unlink(ctx context.Context, path string) error {
	key, _, err := rb.file(ctx, "unlink", path)
	if err != nil {
		return err
	}
	return data.BackendError("unlink", path, rb.client.Del(ctx, rb.buildKey(key)).Err())
}

func (rb *RedisBackend) Mkdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityMkdir, path, rb.options.MinDepth); err != nil {
		return err
	}

	key, err := data.CleanPath(path)
	if err != nil {
		return err
	}

	exists, err := rb.client.Exists(ctx, rb.buildKey(key)).Result()
	if err != nil {
		return data.BackendError("mkdir", path, err)
	}
	isDir, err := rb.hasChildren(ctx, key)
	if err != nil {
		return data.BackendError("mkdir", path, err)
	}
	if exists > 0 || isDir {
		return data.Exists("mkdir", path)
	}
	if err := rb.checkParents(ctx, "mkdir", path, key); err != nil {
		return err
	}

	return data.BackendError("mkdir", path, rb.client.Set(ctx, rb.dirPrefix(key), "", 0).Err())
}

func (rb *RedisBackend) Rmdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityRmdir, path, rb.options.MinDepth); err != nil {
		return err
	}

	key, err := data.CleanPath(path)
	if err != nil {
		return err
	}

	keys, err := rb.scan(ctx, rb.dirPrefix(key), 0)
	if err != nil {
		return data.BackendError("rmdir", path, err)
	}

	if len(keys) == 0 {
		exists, err := rb.client.Exists(ctx, rb.buildKey(key)).Result()
		if err != nil {
			return data.BackendError("rmdir", path, err)
		}
		if exists > 0 {
			return data.NotDirectory("rmdir", path)
		}
		return data.NotFound("rmdir", path)
	}

	slices.Sort(keys)
	keys = slices.Compact(keys)
	for batch := range slices.Chunk(keys, deleteBatchSize) {
		if err := rb.client.Del(ctx, batch...).Err(); err != nil {
			return data.BackendError("rmdir", path, err)
		}
	}

	rb.settings.Logger.Debug("Rmdir: removed %d keys below '%s'", len(keys), key)
	return nil
}

// scan collects keys below prefix, stopping after limit keys when limit > 0.
func (rb *RedisBackend) scan(ctx context.Context, prefix string, limit int) ([]string, error) {
	match := matchPrefix(prefix)

	var keys []string
	var cursor uint64
	for {
		batch, next, err := rb.client.Scan(ctx, cursor, match, rb.options.ScanCount).Result()
		if err != nil {
			return nil, err
		}

		keys = append(keys, batch...)
		if limit > 0 && len(keys) >= limit {
			return keys, nil
		}

		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// file resolves a file key and its length, telling missing keys and folders apart.
func (rb *RedisBackend) file(ctx context.Context, op, path string) (string, int64, error) {
	key, err := data.CleanPath(path)
	if err != nil {
		return "", 0, err
	}
	if key == "" {
		return "", 0, data.IsDirectory(op, path)
	}

	exists, err := rb.client.Exists(ctx, rb.buildKey(key)).Result()
	if err != nil {
		return "", 0, data.BackendError(op, path, err)
	}

	if exists == 0 {
		isDir, err := rb.hasChildren(ctx, key)
		if err != nil {
			return "", 0, data.BackendError(op, path, err)
		}
		if isDir {
			return "", 0, data.IsDirectory(op, path)
		}
		return "", 0, data.NotFound(op, path)
	}

	size, err := rb.client.StrLen(ctx, rb.buildKey(key)).Result()
	if err != nil {
		return "", 0, data.BackendError(op, path, err)
	}
	return key, size, nil
}

func (rb *RedisBackend) hasChildren(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}

	keys, err := rb.scan(ctx, rb.dirPrefix(key), 1)
	return len(keys) > 0, err
}

// checkParents fails with not-a-directory when a parent of key is a file.
func (rb *RedisBackend) checkParents(ctx context.Context, op, path, key string) error {
	parents := data.Parents(key)
	if len(parents) == 0 {
		return nil
	}

	keys := make([]string, len(parents))
	for i, parent := range parents {
		keys[i] = rb.buildKey(parent)
	}
	n, err := rb.client.Exists(ctx, keys...).Result()
	if err != nil {
		return data.BackendError(op, path, err)
	}
	if n > 0 {
		return data.NotDirectory(op, path)
	}
	return nil
}

func isWrongType(err error) bool {
	var redisErr goredis.Error
	return errors.As(err, &redisErr) && strings.HasPrefix(redisErr.Error(), "WRONGTYPE")
}
