package folders

import (
	"context"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/backend/aws"
	"github.com/mwantia/folders/backend/catalog"
	"github.com/mwantia/folders/backend/consul"
	"github.com/mwantia/folders/backend/local"
	"github.com/mwantia/folders/backend/memory"
	"github.com/mwantia/folders/backend/redis"
	"github.com/mwantia/folders/backend/s3"
	"github.com/mwantia/folders/backend/sftp"
	"github.com/mwantia/folders/backend/webhdfs"
	"github.com/mwantia/folders/data"
	"github.com/mwantia/folders/mount"
)

// NewRegistry returns a registry with every built-in backend kind.
func NewRegistry() (*backend.Registry, error) {
	reg := backend.NewRegistry()
	for _, register := range []func(*backend.Registry) error{
		memory.Register,
		local.Register,
		s3.Register,
		aws.Register,
		consul.Register,
		redis.Register,
		sftp.Register,
		webhdfs.Register,
		catalog.Register,
	} {
		if err := register(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// MountConfig is one configured mount point. Either Kind or Address
// selects the backend.
type MountConfig struct {
	Path      string          `mapstructure:"path" json:"path"`
	Kind      string          `mapstructure:"kind" json:"kind,omitempty"`
	Address   string          `mapstructure:"address" json:"address,omitempty"`
	ReadOnly  bool            `mapstructure:"readOnly" json:"readOnly,omitempty"`
	RateLimit float64         `mapstructure:"rateLimit" json:"rateLimit,omitempty"`
	Burst     int             `mapstructure:"burst" json:"burst,omitempty"`
	Options   backend.Options `mapstructure:"options" json:"options,omitempty"`
}

// MountConfigured constructs the backend described by cfg through reg and
// mounts it. Construction errors never leave a half-open mount behind.
func (fs *FileSystem) MountConfigured(ctx context.Context, reg *backend.Registry, settings *backend.Settings, cfg MountConfig) error {
	if cfg.Path == "" {
		return data.NewError(data.ErrConfig, "mount", "", nil).WithMessage("mount path is required")
	}

	var b backend.Backend
	var err error
	switch {
	case cfg.Address != "":
		b, err = reg.NewFromAddress(ctx, cfg.Address, cfg.Options, settings)
	case cfg.Kind != "":
		b, err = reg.New(ctx, cfg.Kind, cfg.Options, settings)
	default:
		err = data.NewError(data.ErrConfig, "mount", cfg.Path, nil).WithMessage("either kind or address is required")
	}
	if err != nil {
		return err
	}

	var opts []mount.Option
	if settings != nil && settings.Metrics != nil {
		opts = append(opts, mount.WithMetrics(settings.Metrics))
	}
	if cfg.ReadOnly {
		opts = append(opts, mount.AsReadOnly())
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, mount.WithRateLimit(cfg.RateLimit, max(cfg.Burst, 1)))
	}

	if err := fs.Mount(ctx, cfg.Path, b, opts...); err != nil {
		if cerr := b.Close(ctx); cerr != nil {
			fs.log.Warn("Failed to close backend after mount error: %v", cerr)
		}
		return err
	}
	return nil
}
