package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

// deleteBatchSize is the object limit of a single DeleteObjects call.
const deleteBatchSize = 1000

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket)
}

// resolve validates the service and region parts of path and returns the
// regional client once a region is addressed.
func (ab *AwsBackend) resolve(ctx context.Context, op, path string) (data.ServiceAddress, Client, error) {
	addr, err := data.SplitService(path)
	if err != nil {
		return addr, nil, err
	}

	if addr.Level() >= 1 && addr.Service != ServiceS3 {
		return addr, nil, data.NotFound(op, path)
	}
	if addr.Level() < 2 {
		return addr, nil, nil
	}
	if !slices.Contains(ab.options.Regions, addr.Region) {
		return addr, nil, data.NotFound(op, path)
	}
	if addr.Level() >= 3 && len(ab.options.Buckets) > 0 && !slices.Contains(ab.options.Buckets, addr.Bucket) {
		return addr, nil, data.NotFound(op, path)
	}

	client, err := ab.client(ctx, addr.Region)
	return addr, client, err
}

func (ab *AwsBackend) Ls(ctx context.Context, path string) ([]*data.Entry, error) {
	addr, client, err := ab.resolve(ctx, "ls", path)
	if err != nil {
		return nil, err
	}

	switch addr.Level() {
	case 0:
		return backend.FolderListing("/", []string{ServiceS3}, nil), nil
	case 1:
		return backend.FolderListing(data.JoinPath(addr.Service), ab.options.Regions, nil), nil
	case 2:
		names, err := ab.buckets(ctx, client, addr.Region)
		if err != nil {
			return nil, data.BackendError("ls", path, err)
		}
		return backend.FolderListing(data.JoinPath(addr.Service, addr.Region), names, entryMeta()), nil
	}

	prefix := ""
	if addr.Key != "" {
		prefix = addr.Key + "/"
	}

	var objects []backend.RawObject
	var prefixes []string
	marker := false

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:    awssdk.String(addr.Bucket),
		Prefix:    awssdk.String(prefix),
		Delimiter: awssdk.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNotFound(err) {
				return nil, data.NotFound("ls", path)
			}
			return nil, data.BackendError("ls", path, err)
		}

		for _, cp := range page.CommonPrefixes {
			prefixes = append(prefixes, awssdk.ToString(cp.Prefix))
		}
		for _, obj := range page.Contents {
			key := awssdk.ToString(obj.Key)
			if key == prefix {
				marker = true
				continue
			}

			meta := entryMeta()
			meta["etag"] = strings.Trim(awssdk.ToString(obj.ETag), `"`)
			objects = append(objects, backend.RawObject{
				Key:          key,
				Size:         awssdk.ToInt64(obj.Size),
				LastModified: awssdk.ToTime(obj.LastModified),
				Meta:         meta,
			})
		}
	}

	if addr.Key != "" && !marker && len(objects) == 0 && len(prefixes) == 0 {
		if _, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: awssdk.String(addr.Bucket),
			Key:    awssdk.String(addr.Key),
		}); err == nil {
			return nil, data.NotDirectory("ls", path)
		}
		return nil, data.NotFound("ls", path)
	}

	dir := data.JoinPath(addr.Service, addr.Region, addr.Bucket, addr.Key)
	entries := backend.PrefixListing(dir, prefix, "/", objects, prefixes)
	for _, entry := range entries {
		if entry.IsFolder() {
			maps.Copy(entry.Meta, entryMeta())
		}
	}
	return entries, nil
}

// buckets returns the configured buckets or every bucket of region.
func (ab *AwsBackend) buckets(ctx context.Context, client Client, region string) ([]string, error) {
	if len(ab.options.Buckets) > 0 {
		return ab.options.Buckets, nil
	}

	var names []string
	paginator := s3.NewListBucketsPaginator(client, &s3.ListBucketsInput{
		BucketRegion: awssdk.String(region),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, bucket := range page.Buckets {
			names = append(names, awssdk.ToString(bucket.Name))
		}
	}
	return names, nil
}

func (ab *AwsBackend) Cat(ctx context.Context, path string) (*data.CatResult, error) {
	return ab.RangeCat(ctx, path, data.Range{})
}

func (ab *AwsBackend) RangeCat(ctx context.Context, path string, rng data.Range) (*data.CatResult, error) {
	addr, client, err := ab.resolve(ctx, "cat", path)
	if err != nil {
		return nil, err
	}
	if addr.Level() < 4 {
		return nil, data.IsDirectory("cat", path)
	}

	head, err := ab.head(ctx, client, "cat", path, addr)
	if err != nil {
		return nil, err
	}

	total := awssdk.ToInt64(head.ContentLength)
	size := total
	input := &s3.GetObjectInput{
		Bucket: awssdk.String(addr.Bucket),
		Key:    awssdk.String(addr.Key),
	}

	if rng.Offset > 0 || rng.Length > 0 {
		if rng.Offset >= total {
			return backend.NewCatResult(ctx, io.NopCloser(bytes.NewReader(nil)), 0, data.Base(addr.Key)), nil
		}

		end := rng.End()
		if end < 0 || end >= total {
			end = total - 1
		}
		input.Range = awssdk.String(fmt.Sprintf("bytes=%d-%d", rng.Offset, end))
		size = end - rng.Offset + 1
	}

	out, err := client.GetObject(ctx, input)
	if err != nil {
		return nil, data.BackendError("cat", path, err)
	}
	return backend.NewCatResult(ctx, out.Body, size, data.Base(addr.Key)), nil
}

func (ab *AwsBackend) Write(ctx context.Context, path string, r io.Reader, size int64) (data.WriteResult, error) {
	addr, client, err := ab.resolve(ctx, "write", path)
	if err != nil {
		return nil, err
	}
	if addr.Level() < 4 {
		return nil, data.IsDirectory("write", path)
	}

	u := &uploader{
		client:    client,
		bucket:    addr.Bucket,
		key:       addr.Key,
		partSize:  ab.options.PartSize,
		queueSize: ab.options.QueueSize,
	}

	result, err := u.upload(ctx, r)
	if err != nil {
		return nil, data.BackendError("write", path, err)
	}
	return result, nil
}

func (ab *AwsBackend) Unlink(ctx context.Context, path string) error {
	addr, client, err := ab.resolve(ctx, "unlink", path)
	if err != nil {
		return err
	}
	if addr.Level() < 4 {
		return data.IsDirectory("unlink", path)
	}

	if _, err := ab.head(ctx, client, "unlink", path, addr); err != nil {
		return err
	}

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(addr.Bucket),
		Key:    awssdk.String(addr.Key),
	})
	return data.BackendError("unlink", path, err)
}

func (ab *AwsBackend) Mkdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityMkdir, path, ab.options.MinDepth); err != nil {
		return err
	}

	addr, client, err := ab.resolve(ctx, "mkdir", path)
	if err != nil {
		return err
	}

	if _, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: awssdk.String(addr.Bucket),
		Key:    awssdk.String(addr.Key),
	}); err == nil {
		return data.Exists("mkdir", path)
	}
	if ab.hasChildren(ctx, client, addr.Bucket, addr.Key+"/") {
		return data.Exists("mkdir", path)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        awssdk.String(addr.Bucket),
		Key:           awssdk.String(addr.Key + "/"),
		Body:          bytes.NewReader(nil),
		ContentLength: awssdk.Int64(0),
		ContentType:   awssdk.String(data.ContentTypeDirectory),
	})
	return data.BackendError("mkdir", path, err)
}

func (ab *AwsBackend) Rmdir(ctx context.Context, path string) error {
	if err := backend.CheckDepth(backend.CapabilityRmdir, path, ab.options.MinDepth); err != nil {
		return err
	}

	addr, client, err := ab.resolve(ctx, "rmdir", path)
	if err != nil {
		return err
	}

	var ids []types.ObjectIdentifier
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: awssdk.String(addr.Bucket),
		Prefix: awssdk.String(addr.Key + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return data.BackendError("rmdir", path, err)
		}
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
	}

	if len(ids) == 0 {
		if _, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: awssdk.String(addr.Bucket),
			Key:    awssdk.String(addr.Key),
		}); err == nil {
			return data.NotDirectory("rmdir", path)
		}
		return data.NotFound("rmdir", path)
	}

	var errs data.Errors
	for batch := range slices.Chunk(ids, deleteBatchSize) {
		out, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: awssdk.String(addr.Bucket),
			Delete: &types.Delete{
				Objects: batch,
				Quiet:   awssdk.Bool(true),
			},
		})
		if err != nil {
			return data.BackendError("rmdir", path, err)
		}
		for _, failed := range out.Errors {
			errs.Add(fmt.Errorf("%s: %s", awssdk.ToString(failed.Key), awssdk.ToString(failed.Message)))
		}
	}

	if err := errs.Errors(); err != nil {
		return data.NewError(data.ErrPartial, "rmdir", path, err)
	}

	ab.settings.Logger.Debug("Rmdir: removed %d objects below '%s'", len(ids), path)
	return nil
}

// head stats a key before reading or deleting it.
func (ab *AwsBackend) head(ctx context.Context, client Client, op, path string, addr data.ServiceAddress) (*s3.HeadObjectOutput, error) {
	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: awssdk.String(addr.Bucket),
		Key:    awssdk.String(addr.Key),
	})
	if err != nil {
		if !isNotFound(err) {
			return nil, data.BackendError(op, path, err)
		}
		if ab.hasChildren(ctx, client, addr.Bucket, addr.Key+"/") {
			return nil, data.IsDirectory(op, path)
		}
		return nil, data.NotFound(op, path)
	}

	if strings.HasSuffix(addr.Key, "/") || awssdk.ToString(out.ContentType) == data.ContentTypeDirectory {
		return nil, data.IsDirectory(op, path)
	}
	return out, nil
}

func (ab *AwsBackend) hasChildren(ctx context.Context, client Client, bucket, prefix string) bool {
	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  awssdk.String(bucket),
		Prefix:  awssdk.String(prefix),
		MaxKeys: awssdk.Int32(1),
	})
	return err == nil && len(out.Contents) > 0
}
