package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

const Kind = "aws"

// ServiceS3 is the only service tag this adapter exposes.
const ServiceS3 = "S3"

// minPartSize is the smallest part S3 accepts in a multipart upload.
const minPartSize = 5 * 1024 * 1024

var defaultRegions = []string{
	"us-east-1", "us-east-2", "us-west-1", "us-west-2",
	"eu-central-1", "eu-west-1", "eu-west-2", "eu-west-3", "eu-north-1",
	"ap-northeast-1", "ap-southeast-1", "ap-southeast-2", "ap-south-1",
	"sa-east-1", "ca-central-1",
}

// Client is the part of the S3 API this adapter relies on.
type Client interface {
	s3.ListObjectsV2APIClient
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// ClientFactory creates a client bound to one region.
type ClientFactory func(ctx context.Context, region string) (Client, error)

// Options configures access to AWS through service/region/bucket paths.
type Options struct {
	AccessKeyID     string `option:"accessKeyId"`
	SecretAccessKey string `option:"secretAccessKey"`
	SessionToken    string `option:"sessionToken"`
	// Endpoint overrides the service endpoint, for example a localstack URL.
	Endpoint     string   `option:"endpoint" validate:"omitempty,url"`
	UsePathStyle bool     `option:"usePathStyle"`
	Regions      []string `option:"regions" validate:"dive,required"`
	// Buckets limits the listing of every region to a fixed set.
	Buckets   []string `option:"buckets" validate:"dive,required"`
	PartSize  int64    `option:"partSize" validate:"min=5242880"`
	QueueSize int      `option:"queueSize" validate:"min=1,max=64"`
	MinDepth  int      `option:"minDepth" validate:"min=4"`

	ConnectionString string `option:"connectionString"`
}

func defaultOptions() *Options {
	return &Options{
		PartSize:  minPartSize,
		QueueSize: 4,
		MinDepth:  4,
	}
}

func (o *Options) Validate() error {
	if o.AccessKeyID == "" {
		o.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if o.SecretAccessKey == "" {
		o.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	if o.SessionToken == "" {
		o.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
	}

	if o.AccessKeyID == "" || o.SecretAccessKey == "" {
		return errors.New("missing credentials")
	}
	if len(o.Regions) == 0 {
		o.Regions = slices.Clone(defaultRegions)
	}
	return nil
}

type AwsBackend struct {
	settings *backend.Settings
	options  *Options

	newClient ClientFactory

	mu      sync.Mutex
	clients map[string]Client
}

// NewAwsBackend validates opts and prepares lazily created regional clients.
func NewAwsBackend(opts backend.Options, settings *backend.Settings) (*AwsBackend, error) {
	options := defaultOptions()
	if err := backend.DecodeOptions(Kind, opts, options); err != nil {
		return nil, err
	}

	ab := NewAwsBackendWithFactory(nil, options, settings)
	ab.newClient = ab.sdkClient
	return ab, nil
}

// NewAwsBackendWithFactory uses factory for regional clients, options must already be validated.
func NewAwsBackendWithFactory(factory ClientFactory, options *Options, settings *backend.Settings) *AwsBackend {
	return &AwsBackend{
		settings:  settings.WithDefaults(Kind),
		options:   options,
		newClient: factory,
		clients:   make(map[string]Client),
	}
}

// Register adds the aws kind to reg.
func Register(reg *backend.Registry) error {
	return reg.Register(Kind, func(ctx context.Context, opts backend.Options, settings *backend.Settings) (backend.Backend, error) {
		return NewAwsBackend(opts, settings)
	})
}

func (ab *AwsBackend) sdkClient(ctx context.Context, region string) (Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ab.options.AccessKeyID, ab.options.SecretAccessKey, ab.options.SessionToken),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ab.options.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(ab.options.Endpoint)
		}
		o.UsePathStyle = ab.options.UsePathStyle
	}), nil
}

// client returns the cached client of region, creating it on first use.
func (ab *AwsBackend) client(ctx context.Context, region string) (Client, error) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if c, exists := ab.clients[region]; exists {
		return c, nil
	}

	c, err := ab.newClient(ctx, region)
	if err != nil {
		return nil, data.ConfigError(Kind, err)
	}

	ab.clients[region] = c
	ab.settings.Logger.Debug("Created client for region '%s'", region)
	return c, nil
}

// Name returns the identifier name defined for this backend
func (*AwsBackend) Name() string {
	return Kind
}

func (ab *AwsBackend) Open(ctx context.Context) error {
	return nil
}

// Close drops every cached regional client.
func (ab *AwsBackend) Close(ctx context.Context) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	clear(ab.clients)
	return nil
}

// Capabilities returns the operations supported by this backend.
func (ab *AwsBackend) Capabilities() *backend.Capabilities {
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
		MinDepth: ab.options.MinDepth,
	}
}

// entryMeta is attached to every entry below a bucket.
func entryMeta() map[string]any {
	return map[string]any{
		"group":      "aws",
		"owner":      "aws",
		"permission": 0,
	}
}
