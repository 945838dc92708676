package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	content     []byte
	contentType string
	modified    time.Time
}

// fakeClient emulates the listing semantics of an S3 endpoint.
type fakeClient struct {
	mu      sync.Mutex
	buckets map[string]map[string]*fakeObject
	gets    int
}

func newFakeClient(buckets ...string) *fakeClient {
	fc := &fakeClient{buckets: make(map[string]map[string]*fakeObject)}
	for _, bucket := range buckets {
		fc.buckets[bucket] = make(map[string]*fakeObject)
	}
	return fc
}

func noSuch(code string) error {
	return minio.ErrorResponse{Code: code, StatusCode: 404}
}

func (fc *fakeClient) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	var out []minio.BucketInfo
	for name := range fc.buckets {
		out = append(out, minio.BucketInfo{Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (fc *fakeClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	_, exists := fc.buckets[bucket]
	return exists, nil
}

func (fc *fakeClient) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	objects, exists := fc.buckets[bucket]
	if !exists {
		ch := make(chan minio.ObjectInfo, 1)
		ch <- minio.ObjectInfo{Err: noSuch("NoSuchBucket")}
		close(ch)
		return ch
	}

	keys := make([]string, 0, len(objects))
	for key := range objects {
		if strings.HasPrefix(key, opts.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var out []minio.ObjectInfo
	seen := make(map[string]bool)
	for _, key := range keys {
		rel := strings.TrimPrefix(key, opts.Prefix)
		if !opts.Recursive {
			if name, _, nested := strings.Cut(rel, "/"); nested {
				common := opts.Prefix + name + "/"
				if !seen[common] {
					seen[common] = true
					out = append(out, minio.ObjectInfo{Key: common})
				}
				continue
			}
		}
		obj := objects[key]
		out = append(out, minio.ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.content)),
			LastModified: obj.modified,
			ContentType:  obj.contentType,
		})
	}

	if opts.MaxKeys > 0 && len(out) > opts.MaxKeys {
		out = out[:opts.MaxKeys]
	}

	ch := make(chan minio.ObjectInfo, len(out))
	for _, info := range out {
		ch <- info
	}
	close(ch)
	return ch
}

func (fc *fakeClient) StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	obj, exists := fc.buckets[bucket][key]
	if !exists {
		return minio.ObjectInfo{}, noSuch("NoSuchKey")
	}
	return minio.ObjectInfo{
		Key:         key,
		Size:        int64(len(obj.content)),
		ContentType: obj.contentType,
	}, nil
}

func (fc *fakeClient) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.gets++
	obj, exists := fc.buckets[bucket][key]
	if !exists {
		return nil, noSuch("NoSuchKey")
	}

	content := obj.content
	if header := opts.Header().Get("Range"); header != "" {
		var start, end int
		spec := strings.TrimPrefix(header, "bytes=")
		from, to, _ := strings.Cut(spec, "-")
		start = atoi(from)
		end = len(content) - 1
		if to != "" {
			end = atoi(to)
		}
		content = content[start : end+1]
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func (fc *fakeClient) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	objects, exists := fc.buckets[bucket]
	if !exists {
		return minio.UploadInfo{}, noSuch("NoSuchBucket")
	}

	sum := md5.Sum(content)
	objects[key] = &fakeObject{
		content:     content,
		contentType: opts.ContentType,
		modified:    time.Now(),
	}
	return minio.UploadInfo{
		Bucket:    bucket,
		Key:       key,
		ETag:      hex.EncodeToString(sum[:]),
		Size:      int64(len(content)),
		VersionID: "v1",
	}, nil
}

func (fc *fakeClient) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	delete(fc.buckets[bucket], key)
	return nil
}

func (fc *fakeClient) RemoveObjects(ctx context.Context, bucket string, objects <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for info := range objects {
		delete(fc.buckets[bucket], info.Key)
	}

	ch := make(chan minio.RemoveObjectError)
	close(ch)
	return ch
}

func (fc *fakeClient) put(t *testing.T, bucket, key, content string) {
	t.Helper()
	_, err := fc.PutObject(t.Context(), bucket, key, strings.NewReader(content), int64(len(content)), minio.PutObjectOptions{})
	require.NoError(t, err)
}

func newTestBackend(t *testing.T, fc *fakeClient, opts backend.Options) *S3Backend {
	t.Helper()

	options := &Options{}
	require.NoError(t, backend.DecodeOptions(Kind, opts, options))

	sb := NewS3BackendWithClient(fc, options, nil)
	require.NoError(t, sb.Open(t.Context()))
	return sb
}

func TestS3_ListingScenario(t *testing.T) {
	fc := newFakeClient("bucket", "other")
	fc.put(t, "bucket", "folder1/folder2/nested.txt", "n")
	fc.put(t, "bucket", "folder1/file1.txt", strings.Repeat("x", 123))
	fc.put(t, "bucket", "folder1/image.jpg", strings.Repeat("y", 456))

	sb := newTestBackend(t, fc, nil)

	root, err := sb.Ls(t.Context(), "/")
	require.NoError(t, err)
	require.Len(t, root, 2)
	assert.Equal(t, "bucket", root[0].Name)
	assert.True(t, root[0].IsFolder())

	entries, err := sb.Ls(t.Context(), "/bucket/folder1/")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.NoError(t, data.ValidateListing("/bucket/folder1", entries))

	assert.Equal(t, "folder2", entries[0].Name)
	assert.Equal(t, data.FolderExtension, entries[0].Extension)
	assert.Equal(t, "/bucket/folder1/folder2", entries[0].FullPath)

	sizes := map[string]int64{}
	for _, entry := range entries[1:] {
		sizes[entry.Name] = entry.Size
	}
	assert.Equal(t, map[string]int64{"file1.txt": 123, "image.jpg": 456}, sizes)

	_, err = sb.Ls(t.Context(), "/bucket/missing")
	assert.ErrorIs(t, err, data.ErrNotExist)

	_, err = sb.Ls(t.Context(), "/bucket/folder1/file1.txt")
	assert.ErrorIs(t, err, data.ErrNotDirectory)
}

func TestS3_PinnedBucket(t *testing.T) {
	fc := newFakeClient("pinned")
	fc.put(t, "pinned", "a/b.txt", "b")

	sb := newTestBackend(t, fc, backend.Options{"connectionString": "s3://pinned"})
	assert.Equal(t, 1, sb.Capabilities().MinDepth)

	entries, err := sb.Ls(t.Context(), "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/a", entries[0].FullPath)

	err = NewS3BackendWithClient(fc, &Options{Bucket: "absent"}, nil).Open(t.Context())
	assert.ErrorIs(t, err, data.ErrNotExist)
}

func TestS3_WriteCatAndRange(t *testing.T) {
	fc := newFakeClient("bucket")
	sb := newTestBackend(t, fc, nil)

	result, err := sb.Write(t.Context(), "/bucket/docs/hello.txt", strings.NewReader("hello world"), 11)
	require.NoError(t, err)
	assert.Equal(t, "v1", result["VersionId"])
	assert.NotEmpty(t, result["ETag"])
	assert.Equal(t, "text/plain", fc.buckets["bucket"]["docs/hello.txt"].contentType)

	cat, err := sb.Cat(t.Context(), "/bucket/docs/hello.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(cat.Stream)
	require.NoError(t, err)
	require.NoError(t, cat.Stream.Close())
	assert.Equal(t, "hello world", string(got))
	assert.Equal(t, int64(11), cat.Size)
	assert.Equal(t, "hello.txt", cat.Name)

	part, err := sb.RangeCat(t.Context(), "/bucket/docs/hello.txt", data.Range{Offset: 6, Length: 100})
	require.NoError(t, err)
	got, _ = io.ReadAll(part.Stream)
	assert.Equal(t, "world", string(got))
	assert.Equal(t, int64(5), part.Size)

	// The stat rejects folders before any content request
	gets := fc.gets
	_, err = sb.Cat(t.Context(), "/bucket/docs")
	assert.Equal(t, data.KindWrongKind, data.KindOf(err))
	_, err = sb.Cat(t.Context(), "/bucket/docs/missing.txt")
	assert.ErrorIs(t, err, data.ErrNotExist)
	assert.Equal(t, gets, fc.gets)
}

func TestS3_DirectoryOperations(t *testing.T) {
	fc := newFakeClient("bucket")
	sb := newTestBackend(t, fc, nil)
	ctx := t.Context()

	require.NoError(t, sb.Mkdir(ctx, "/bucket/dir/"))
	assert.Equal(t, data.ContentTypeDirectory, fc.buckets["bucket"]["dir/"].contentType)
	assert.ErrorIs(t, sb.Mkdir(ctx, "/bucket/dir/"), data.ErrExist)

	entries, err := sb.Ls(ctx, "/bucket/dir")
	require.NoError(t, err)
	assert.Empty(t, entries)

	fc.put(t, "bucket", "dir/sub/file.txt", "x")
	fc.put(t, "bucket", "dir/file.txt", "x")
	assert.ErrorIs(t, sb.Unlink(ctx, "/bucket/dir"), data.ErrIsDirectory)

	require.NoError(t, sb.Rmdir(ctx, "/bucket/dir"))
	assert.Empty(t, fc.buckets["bucket"])
	assert.ErrorIs(t, sb.Rmdir(ctx, "/bucket/dir"), data.ErrNotExist)

	// Buckets themselves are protected
	err = sb.Rmdir(ctx, "/bucket/")
	assert.Equal(t, data.KindProtected, data.KindOf(err))
	err = sb.Mkdir(ctx, "/newbucket")
	assert.Equal(t, data.KindProtected, data.KindOf(err))

	fc.put(t, "bucket", "single.txt", "x")
	require.NoError(t, sb.Unlink(ctx, "/bucket/single.txt"))
	assert.True(t, errors.Is(sb.Unlink(ctx, "/bucket/single.txt"), data.ErrNotExist))
}

func TestS3_Options(t *testing.T) {
	options := &Options{}
	require.NoError(t, backend.DecodeOptions(Kind, backend.Options{
		"endpoint":        "http://localhost:9000",
		"accessKeyId":     "key",
		"secretAccessKey": "secret",
	}, options))
	assert.Equal(t, "localhost:9000", options.Endpoint)
	assert.False(t, options.Secure)
	assert.Equal(t, 2, options.MinDepth)

	err := backend.DecodeOptions(Kind, backend.Options{"accessKeyId": "key"}, &Options{})
	assert.ErrorIs(t, err, data.ErrConfig)

	err = backend.DecodeOptions(Kind, backend.Options{"partSize": 1024}, &Options{})
	assert.ErrorIs(t, err, data.ErrConfig)

	assert.True(t, sbCapabilities(t).Contains(backend.CapabilityRangeCat))
	assert.False(t, sbCapabilities(t).Contains(backend.CapabilityServer))
}

func sbCapabilities(t *testing.T) *backend.Capabilities {
	return newTestBackend(t, newFakeClient(), nil).Capabilities()
}
