package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

const Kind = "s3"

// Client is the part of the minio client this adapter relies on.
type Client interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	RemoveObjects(ctx context.Context, bucket string, objects <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

// minioClient narrows GetObject to an io.ReadCloser.
type minioClient struct {
	*minio.Client
}

func (mc minioClient) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return mc.Client.GetObject(ctx, bucket, key, opts)
}

// Options configures an S3 compatible object store.
type Options struct {
	// ConnectionString like "s3://bucket" pins the adapter to one bucket.
	ConnectionString string `option:"connectionString"`
	Endpoint         string `option:"endpoint"`
	Bucket           string `option:"bucket"`
	AccessKeyID      string `option:"accessKeyId"`
	SecretAccessKey  string `option:"secretAccessKey"`
	SessionToken     string `option:"sessionToken"`
	Region           string `option:"region"`
	Secure           bool   `option:"secure"`
	PartSize         uint64 `option:"partSize" validate:"omitempty,min=5242880"`
	// MinDepth defaults to 1 with a pinned bucket and 2 otherwise.
	MinDepth int `option:"minDepth" validate:"min=0"`
}

func (o *Options) Validate() error {
	if o.ConnectionString != "" {
		u, err := url.Parse(o.ConnectionString)
		if err != nil {
			return fmt.Errorf("malformed connectionString: %w", err)
		}
		if o.Bucket == "" {
			o.Bucket = u.Host
		}
	}

	if strings.Contains(o.Endpoint, "://") {
		u, err := url.Parse(o.Endpoint)
		if err != nil {
			return fmt.Errorf("malformed endpoint: %w", err)
		}
		o.Secure = u.Scheme == "https"
		o.Endpoint = u.Host
	}
	if o.Endpoint == "" {
		o.Endpoint = "s3.amazonaws.com"
		o.Secure = true
	}

	if (o.AccessKeyID == "") != (o.SecretAccessKey == "") {
		return fmt.Errorf("accessKeyId and secretAccessKey must be set together")
	}

	if o.MinDepth == 0 {
		o.MinDepth = 2
		if o.Bucket != "" {
			o.MinDepth = 1
		}
	}
	return nil
}

type S3Backend struct {
	settings *backend.Settings
	options  *Options
	client   Client
}

// NewS3Backend validates opts and creates a minio client for them.
func NewS3Backend(opts backend.Options, settings *backend.Settings) (*S3Backend, error) {
	options := &Options{}
	if err := backend.DecodeOptions(Kind, opts, options); err != nil {
		return nil, err
	}

	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
	})
	if options.AccessKeyID != "" {
		creds = credentials.NewStaticV4(options.AccessKeyID, options.SecretAccessKey, options.SessionToken)
	}

	client, err := minio.New(options.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: options.Secure,
		Region: options.Region,
	})
	if err != nil {
		return nil, data.ConfigError(Kind, err)
	}

	return NewS3BackendWithClient(minioClient{client}, options, settings), nil
}

// NewS3BackendWithClient uses an existing client, options must already be validated.
func NewS3BackendWithClient(client Client, options *Options, settings *backend.Settings) *S3Backend {
	return &S3Backend{
		settings: settings.WithDefaults(Kind),
		options:  options,
		client:   client,
	}
}

// Register adds the s3 kind to reg.
func Register(reg *backend.Registry) error {
	return reg.Register(Kind, func(ctx context.Context, opts backend.Options, settings *backend.Settings) (backend.Backend, error) {
		return NewS3Backend(opts, settings)
	}, "minio", "rustfs")
}

// Name returns the identifier name defined for this backend
func (*S3Backend) Name() string {
	return Kind
}

// Open verifies that a pinned bucket exists.
func (sb *S3Backend) Open(ctx context.Context) error {
	if sb.options.Bucket == "" {
		return nil
	}

	exists, err := sb.client.BucketExists(ctx, sb.options.Bucket)
	if err != nil {
		return data.BackendError("open", sb.options.Bucket, err)
	}
	if !exists {
		return data.NotFound("open", sb.options.Bucket)
	}
	return nil
}

// Close is part of the lifecycle behaviour, the minio client holds no resources.
func (sb *S3Backend) Close(ctx context.Context) error {
	return nil
}

// Capabilities returns the operations supported by this backend.
func (sb *S3Backend) Capabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityCat,
			backend.CapabilityLs,
			backend.CapabilityWrite,
			backend.CapabilityUnlink,
			backend.CapabilityRmdir,
			backend.CapabilityMkdir,
			backend.CapabilityRangeCat,
		},
		MinDepth: sb.options.MinDepth,
	}
}

// address splits path into bucket and key, honoring a pinned bucket.
func (sb *S3Backend) address(path string) (bucket, key string, err error) {
	if sb.options.Bucket != "" {
		key, err = data.CleanPath(path)
		return sb.options.Bucket, key, err
	}
	return data.SplitBucketKey(path)
}

// virtualDir returns the adapter-relative directory of bucket and key.
func (sb *S3Backend) virtualDir(bucket, key string) string {
	if sb.options.Bucket != "" {
		return data.JoinPath(key)
	}
	return data.JoinPath(bucket, key)
}

func isDirectoryObject(info minio.ObjectInfo) bool {
	return strings.HasSuffix(info.Key, "/") || info.ContentType == data.ContentTypeDirectory
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}
