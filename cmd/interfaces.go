package cmd

import (
	"context"
	"io"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

// API is the part of the mount table commands operate on.
type API interface {
	// Ls returns a single-level listing of the directory at path.
	Ls(ctx context.Context, path string) ([]*data.Entry, error)

	// Cat opens the file at path. The stream must be closed by the caller.
	Cat(ctx context.Context, path string) (*data.CatResult, error)

	// RangeCat opens part of the file at path.
	RangeCat(ctx context.Context, path string, rng data.Range) (*data.CatResult, error)

	// Write streams r to path, size is -1 when unknown.
	Write(ctx context.Context, path string, r io.Reader, size int64) (data.WriteResult, error)

	Unlink(ctx context.Context, path string) error
	Mkdir(ctx context.Context, path string) error
	Rmdir(ctx context.Context, path string) error

	// Capabilities returns the descriptor of the mount serving path.
	Capabilities(path string) (*backend.Capabilities, error)
}

// IO bundles the streams a command reads from and writes to.
type IO struct {
	In  io.Reader
	Out io.Writer
}

// Command represents an executable command within the virtual filesystem.
type Command interface {
	// Name returns the command identifier
	Name() string

	// Description returns human-readable help text
	Description() string

	// Usage returns a usage string for help (e.g. "ls -l [path]")
	Usage() string

	// Execute runs the command with parsed arguments.
	// Returns exit code (0 = success) and error message
	Execute(ctx context.Context, api API, args *CommandArgs, stdio IO) (int, error)

	// GetFlags returns the flag set for this command (this is optional)
	GetFlags() *CommandFlagSet
}
