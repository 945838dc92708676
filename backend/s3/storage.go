package s3

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

func (sb *S3Backend) Ls(ctx context.Context, path string) ([]*data.Entry, error) {
	bucket, key, err := sb.address(path)
	if err != nil {
		return nil, err
	}

	if bucket == "" {
		buckets, err := sb.client.ListBuckets(ctx)
		if err != nil {
			return nil, data.BackendError("ls", path, err)
		}

		names := make([]string, 0, len(buckets))
		for _, info := range buckets {
			names = append(names, info.Name)
		}
		return backend.FolderListing("/", names, nil), nil
	}

	prefix := ""
	if key != "" {
		prefix = key + "/"
	}

	var objects []backend.RawObject
	var prefixes []string
	marker := false

	for info := range sb.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if info.Err != nil {
			if isNotFound(info.Err) {
				return nil, data.NotFound("ls", path)
			}
			return nil, data.BackendError("ls", path, info.Err)
		}

		switch {
		case info.Key == prefix:
			marker = true
		case strings.HasSuffix(info.Key, "/"):
			prefixes = append(prefixes, info.Key)
		default:
			objects = append(objects, backend.RawObject{
				Key:          info.Key,
				Size:         info.Size,
				LastModified: info.LastModified,
				Meta: map[string]any{
					"etag": info.ETag,
				},
			})
		}
	}

	if key != "" && !marker && len(objects) == 0 && len(prefixes) == 0 {
		if _, err := sb.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err == nil {
			return nil, data.NotDirectory("ls", path)
		}
		return nil, data.NotFound("ls", path)
	}

	return backend.PrefixListing(sb.virtualDir(bucket, key), prefix, "/", objects, prefixes), nil
}

func (sb *S3Backend) Cat(ctx context.Context, path string) (*data.CatResult, error) {
	return sb.RangeCat(ctx, path, data.Range{})
}

func (sb *S3Backend) RangeCat(ctx context.Context, path string, rng data.Range) (*data.CatResult, error) {
	bucket, key, err := sb.address(path)
	if err != nil {
		return nil, err
	}
	if bucket == "" || key == "" {
		return nil, data.IsDirectory("cat", path)
	}

	info, err := sb.stat(ctx, "cat", path, bucket, key)
	if err != nil {
		return nil, err
	}

	opts := minio.GetObjectOptions{}
	size := info.Size
	if rng.Offset > 0 || rng.Length > 0 {
		if rng.Offset >= info.Size {
			return backend.NewCatResult(ctx, io.NopCloser(bytes.NewReader(nil)), 0, data.Base(key)), nil
		}

		end := rng.End()
		if end < 0 || end >= info.Size {
			end = info.Size - 1
		}
		if err := opts.SetRange(rng.Offset, end); err != nil {
			return nil, data.BackendError("cat", path, err)
		}
		size = end - rng.Offset + 1
	}

	rc, err := sb.client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, data.BackendError("cat", path, err)
	}
	return backend.NewCatResult(ctx, rc, size, data.Base(key)), nil
}

func (sb *S3Backend) Write(ctx context.Context, path string, r io.Reader, size int64) (data.WriteResult, error) {
	bucket, key, err := sb.address(path)
	if err != nil {
		return nil, err
	}
	if bucket == "" || key == "" {
		return nil, data.IsDirectory("write", path)
	}

	info, err := sb.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: data.MIMEType(key),
		PartSize:    sb.options.PartSize,
	})
	if err != nil {
		return nil, data.BackendError("write", path, err)
	}

	sb.settings.Logger.Debug("Write: stored '%s/%s' with %d bytes", bucket, key, info.Size)
	return data.ObjectWritten(info.ETag, info.VersionID), nil
}

func (sb *S3Backend) Unlink(ctx context.Context, path string) error {
	bucket, key, err := sb.address(path)
	if err != nil {
		return err
	}
	if bucket == "" || key == "" {
		return data.IsDirectory("unlink", path)
	}

	if _, err := sb.stat(ctx, "unlink", path, bucket, key); err != nil {
		return err
	}

	if err := sb.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return data.BackendError("unlink", path, err)
	}
	return nil
}

func (sb *S3Backend) Mkdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityMkdir, path, sb.options.MinDepth); err != nil {
		return err
	}

	bucket, key, err := sb.address(path)
	if err != nil {
		return err
	}

	if _, err := sb.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err == nil {
		return data.Exists("mkdir", path)
	}
	if sb.hasChildren(ctx, bucket, key+"/") {
		return data.Exists("mkdir", path)
	}

	_, err = sb.client.PutObject(ctx, bucket, key+"/", bytes.NewReader(nil), 0, minio.PutObjectOptions{
		ContentType: data.ContentTypeDirectory,
	})
	if err != nil {
		return data.BackendError("mkdir", path, err)
	}
	return nil
}

func (sb *S3Backend) Rmdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityRmdir, path, sb.options.MinDepth); err != nil {
		return err
	}

	bucket, key, err := sb.address(path)
	if err != nil {
		return err
	}

	prefix := key + "/"
	var keys []minio.ObjectInfo
	for info := range sb.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return data.BackendError("rmdir", path, info.Err)
		}
		keys = append(keys, info)
	}

	if len(keys) == 0 {
		if _, err := sb.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err == nil {
			return data.NotDirectory("rmdir", path)
		}
		return data.NotFound("rmdir", path)
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, info := range keys {
		objects <- info
	}
	close(objects)

	var errs data.Errors
	for rerr := range sb.client.RemoveObjects(ctx, bucket, objects, minio.RemoveObjectsOptions{}) {
		errs.Add(rerr.Err)
	}
	if err := errs.Errors(); err != nil {
		return data.BackendError("rmdir", path, err)
	}

	sb.settings.Logger.Debug("Rmdir: removed %d objects below '%s/%s'", len(keys), bucket, prefix)
	return nil
}

// stat checks key before a read or delete, telling a missing key apart
// from a pseudo folder that only exists through deeper keys.
func (sb *S3Backend) stat(ctx context.Context, op, path, bucket, key string) (minio.ObjectInfo, error) {
	info, err := sb.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if !isNotFound(err) {
			return info, data.BackendError(op, path, err)
		}
		if sb.hasChildren(ctx, bucket, key+"/") {
			return info, data.IsDirectory(op, path)
		}
		return info, data.NotFound(op, path)
	}

	if isDirectoryObject(info) {
		return info, data.IsDirectory(op, path)
	}
	return info, nil
}

func (sb *S3Backend) hasChildren(ctx context.Context, bucket, prefix string) bool {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for info := range sb.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:  prefix,
		MaxKeys: 1,
	}) {
		return info.Err == nil
	}
	return false
}
