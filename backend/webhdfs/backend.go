package webhdfs

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

const Kind = "webhdfs"

// WebHdfsBackend talks to the namenode REST endpoint. Reads and writes
// follow the redirect to a datanode.
type WebHdfsBackend struct {
	settings *backend.Settings
	options  *Options
	base     *url.URL
	client   *http.Client
	// upload does not follow redirects, CREATE needs the datanode location.
	upload *http.Client
}

// Options configures the namenode endpoint.
type Options struct {
	// BaseURL like "http://namenode:9870/webhdfs/v1".
	BaseURL  string `option:"baseUrl" validate:"required,url"`
	Username string `option:"username" validate:"required"`
	// Root is the HDFS directory exposed as "/".
	Root    string        `option:"root"`
	Timeout time.Duration `option:"timeout"`
	// Summaries fills folder sizes and counts with one GETCONTENTSUMMARY per folder.
	Summaries bool `option:"summaries"`
	MinDepth  int  `option:"minDepth" validate:"min=0"`
}

func defaultOptions() *Options {
	return &Options{
		Root:      "/",
		Timeout:   30 * time.Second,
		Summaries: true,
		MinDepth:  1,
	}
}

func (o *Options) Validate() error {
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("option 'baseUrl' must use http or https")
	}
	o.Root = path.Clean("/" + o.Root)
	return nil
}

func NewWebHdfsBackend(opts backend.Options, settings *backend.Settings) (*WebHdfsBackend, error) {
	options := defaultOptions()
	if err := backend.DecodeOptions(Kind, opts, options); err != nil {
		return nil, err
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = options.Timeout
	return NewWebHdfsBackendWithClient(client, options, settings)
}

// NewWebHdfsBackendWithClient uses client for every request, options must already be validated.
func NewWebHdfsBackendWithClient(client *http.Client, options *Options, settings *backend.Settings) (*WebHdfsBackend, error) {
	base, err := url.Parse(strings.TrimSuffix(options.BaseURL, "/"))
	if err != nil {
		return nil, data.ConfigError(Kind, err)
	}

	upload := *client
	upload.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &WebHdfsBackend{
		settings: settings.WithDefaults(Kind),
		options:  options,
		base:     base,
		client:   client,
		upload:   &upload,
	}, nil
}

// Register adds the webhdfs kind to reg.
func Register(reg *backend.Registry) error {
	return reg.Register(Kind, func(ctx context.Context, opts backend.Options, settings *backend.Settings) (backend.Backend, error) {
		return NewWebHdfsBackend(opts, settings)
	}, "hdfs")
}

// Name returns the identifier name defined for this backend
func (*WebHdfsBackend) Name() string {
	return Kind
}

// Open checks that the configured root is a directory.
func (wb *WebHdfsBackend) Open(ctx context.Context) error {
	status, err := wb.status(ctx, "open", "/", "")
	if err != nil {
		return err
	}
	if status.Type != typeDirectory {
		return data.NotDirectory("open", wb.options.Root)
	}
	return nil
}

// Close releases idle connections.
func (wb *WebHdfsBackend) Close(ctx context.Context) error {
	wb.client.CloseIdleConnections()
	return nil
}

// Capabilities returns the operations supported by this backend.
func (wb *WebHdfsBackend) Capabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityCat,
			backend.CapabilityLs,
			backend.CapabilityWrite,
			backend.CapabilityUnlink,
			backend.CapabilityRmdir,
			backend.CapabilityMkdir,
			backend.CapabilityServer,
			backend.CapabilityRangeCat,
		},
		MinDepth: wb.options.MinDepth,
	}
}
