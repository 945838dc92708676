package backend

import (
	"context"
	"io"

	"github.com/mwantia/folders/data"
)

// Backend is the lifecycle entrypoint every adapter implements.
// Operations are exposed through the optional interfaces below and
// advertised through Capabilities.
type Backend interface {
	// Name returns the kind tag this backend was registered with.
	Name() string
	// Open is part of the lifecycle behaviour and gets called before the first operation.
	Open(ctx context.Context) error
	// Close is part of the lifecycle behaviour and releases all client handles.
	Close(ctx context.Context) error

	// Capabilities returns the static descriptor of supported operations.
	Capabilities() *Capabilities
}

// Lister returns a single-level listing of a virtual directory.
type Lister interface {
	Ls(ctx context.Context, path string) ([]*data.Entry, error)
}

// Reader opens a file for streaming. Existence and kind are checked
// before the stream is opened.
type Reader interface {
	Cat(ctx context.Context, path string) (*data.CatResult, error)
}

// RangeReader reads part of a file.
type RangeReader interface {
	RangeCat(ctx context.Context, path string, rng data.Range) (*data.CatResult, error)
}

// Writer stores the bytes of r at path. Implementations must not buffer
// the complete stream; size is a hint and -1 when unknown.
type Writer interface {
	Write(ctx context.Context, path string, r io.Reader, size int64) (data.WriteResult, error)
}

type Unlinker interface {
	Unlink(ctx context.Context, path string) error
}

// DirMaker receives paths with a trailing separator.
type DirMaker interface {
	Mkdir(ctx context.Context, path string) error
}

// DirRemover receives paths with a trailing separator.
type DirRemover interface {
	Rmdir(ctx context.Context, path string) error
}
