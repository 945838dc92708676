package redis

import (
	"context"
	"strings"

	goredis "github.com/go-redis/redis/v8"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

const Kind = "redis"

// RedisBackend exposes string keys of a Redis database as a folder tree.
// Redis has no delimiter primitive, so listings SCAN the key space below
// a folder and group the keys manually.
type RedisBackend struct {
	settings *backend.Settings
	options  *Options
	client   *goredis.Client
}

// Options configures the Redis connection and key namespace.
type Options struct {
	// ConnectionString like "redis://:password@localhost:6379/0".
	ConnectionString string `option:"connectionString"`
	Address          string `option:"address"`
	Username         string `option:"username"`
	Password         string `option:"password"`
	DB               int    `option:"db" validate:"min=0"`
	// Prefix is prepended verbatim to every key, for example "folders:".
	Prefix        string `option:"prefix"`
	ScanCount     int64  `option:"scanCount" validate:"min=1"`
	MaxObjectSize int64  `option:"maxObjectSize" validate:"min=0"`
	MinDepth      int    `option:"minDepth" validate:"min=0"`
}

func defaultOptions() *Options {
	return &Options{
		Address:       "127.0.0.1:6379",
		ScanCount:     1000,
		MaxObjectSize: 64 * 1024 * 1024,
		MinDepth:      1,
	}
}

func (o *Options) clientOptions() (*goredis.Options, error) {
	if o.ConnectionString != "" {
		return goredis.ParseURL(o.ConnectionString)
	}

	return &goredis.Options{
		Addr:     o.Address,
		Username: o.Username,
		Password: o.Password,
		DB:       o.DB,
	}, nil
}

func NewRedisBackend(opts backend.Options, settings *backend.Settings) (*RedisBackend, error) {
	options := defaultOptions()
	if err := backend.DecodeOptions(Kind, opts, options); err != nil {
		return nil, err
	}

	clientOptions, err := options.clientOptions()
	if err != nil {
		return nil, data.ConfigError(Kind, err)
	}

	return NewRedisBackendWithClient(goredis.NewClient(clientOptions), options, settings), nil
}

// NewRedisBackendWithClient uses an existing client, options must already be validated.
func NewRedisBackendWithClient(client *goredis.Client, options *Options, settings *backend.Settings) *RedisBackend {
	return &RedisBackend{
		settings: settings.WithDefaults(Kind),
		options:  options,
		client:   client,
	}
}

// Register adds the redis kind to reg.
func Register(reg *backend.Registry) error {
	return reg.Register(Kind, func(ctx context.Context, opts backend.Options, settings *backend.Settings) (backend.Backend, error) {
		return NewRedisBackend(opts, settings)
	}, "rediss")
}

// Name returns the identifier name defined for this backend
func (*RedisBackend) Name() string {
	return Kind
}

// Open verifies the connection.
func (rb *RedisBackend) Open(ctx context.Context) error {
	if err := rb.client.Ping(ctx).Err(); err != nil {
		return data.BackendError("open", rb.options.Address, err)
	}
	return nil
}

// Close releases the connection pool.
func (rb *RedisBackend) Close(ctx context.Context) error {
	return rb.client.Close()
}

// Capabilities returns the operations supported by this backend.
func (rb *RedisBackend) Capabilities() *backend.Capabilities {
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
		MaxObjectSize: rb.options.MaxObjectSize,
		MinDepth:      rb.options.MinDepth,
	}
}

func (rb *RedisBackend) buildKey(key string) string {
	return rb.options.Prefix + key
}

func (rb *RedisBackend) dirPrefix(key string) string {
	if key == "" {
		return rb.options.Prefix
	}
	return rb.options.Prefix + key + "/"
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// matchPrefix builds a SCAN pattern matching every key below prefix.
func matchPrefix(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}
