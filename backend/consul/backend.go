package consul

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

const Kind = "consul"

// KV is the part of the Consul KV API this adapter relies on.
type KV interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	Keys(prefix, separator string, q *api.QueryOptions) ([]string, *api.QueryMeta, error)
	List(prefix string, q *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
	Put(p *api.KVPair, q *api.WriteOptions) (*api.WriteMeta, error)
	Delete(key string, w *api.WriteOptions) (*api.WriteMeta, error)
	DeleteTree(prefix string, w *api.WriteOptions) (*api.WriteMeta, error)
}

// ConsulBackend exposes a Consul KV namespace as a folder tree.
//
// Architecture:
// - Files are KV pairs with their path as key below the configured prefix
// - Folders are implied by deeper keys or stored as empty "dir/" markers
// - Consul KV has a 512KB limit per value
type ConsulBackend struct {
	settings *backend.Settings
	options  *Options
	kv       KV
}

// Options configures the Consul client and the mounted key prefix.
type Options struct {
	// ConnectionString like "consul://127.0.0.1:8500/config" sets address and prefix.
	ConnectionString string `option:"connectionString"`
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address    string `option:"address"`
	Scheme     string `option:"scheme" validate:"omitempty,oneof=http https"`
	Token      string `option:"token"`
	Datacenter string `option:"datacenter"`
	Namespace  string `option:"namespace"`
	// Prefix for all keys in Consul KV (default: "/")
	Prefix        string `option:"prefix"`
	MaxObjectSize int64  `option:"maxObjectSize" validate:"min=0"`
	MinDepth      int    `option:"minDepth" validate:"min=0"`
}

func defaultOptions() *Options {
	return &Options{
		Address:       "127.0.0.1:8500",
		Prefix:        "/",
		MaxObjectSize: 512 * 1024,
		MinDepth:      1,
	}
}

func (o *Options) Validate() error {
	if o.ConnectionString != "" {
		u, err := url.Parse(o.ConnectionString)
		if err != nil {
			return fmt.Errorf("malformed connectionString: %w", err)
		}
		if u.Host != "" {
			o.Address = u.Host
		}
		if u.Path != "" && u.Path != "/" {
			o.Prefix = u.Path
		}
	}

	if o.Prefix == "" {
		o.Prefix = "/"
	}
	return nil
}

// NewConsulBackend creates a new Consul-backed folder tree
func NewConsulBackend(opts backend.Options, settings *backend.Settings) (*ConsulBackend, error) {
	options := defaultOptions()
	if err := backend.DecodeOptions(Kind, opts, options); err != nil {
		return nil, err
	}

	clientConfig := api.DefaultConfig()
	clientConfig.Address = options.Address
	if options.Scheme != "" {
		clientConfig.Scheme = options.Scheme
	}
	if options.Token != "" {
		clientConfig.Token = options.Token
	}
	if options.Datacenter != "" {
		clientConfig.Datacenter = options.Datacenter
	}
	if options.Namespace != "" {
		clientConfig.Namespace = options.Namespace
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, data.ConfigError(Kind, err)
	}

	return NewConsulBackendWithKV(client.KV(), options, settings), nil
}

// NewConsulBackendWithKV uses an existing KV client, options must already be validated.
func NewConsulBackendWithKV(kv KV, options *Options, settings *backend.Settings) *ConsulBackend {
	return &ConsulBackend{
		settings: settings.WithDefaults(Kind),
		options:  options,
		kv:       kv,
	}
}

// Register adds the consul kind to reg.
func Register(reg *backend.Registry) error {
	return reg.Register(Kind, func(ctx context.Context, opts backend.Options, settings *backend.Settings) (backend.Backend, error) {
		return NewConsulBackend(opts, settings)
	})
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return Kind
}

// Open is part of the lifecycle behaviour and gets called when opening this backend
func (cb *ConsulBackend) Open(ctx context.Context) error {
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	return nil
}

// Capabilities returns the operations supported by this backend.
func (cb *ConsulBackend) Capabilities() *backend.Capabilities {
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
		MaxObjectSize: cb.options.MaxObjectSize,
		MinDepth:      cb.options.MinDepth,
	}
}

// buildKey constructs the full Consul KV key from the relative key
func (cb *ConsulBackend) buildKey(key string) string {
	prefix := strings.Trim(cb.options.Prefix, "/")
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "/" + key
}

// dirPrefix returns the key prefix of all children of key.
func (cb *ConsulBackend) dirPrefix(key string) string {
	full := cb.buildKey(key)
	if full == "" {
		return ""
	}
	return full + "/"
}

func queryOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

func writeOptions(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}
