package builtin

import (
	"context"

	"github.com/mwantia/folders/cmd"
)

type MkdirCommand struct {
}

func (m *MkdirCommand) Name() string        { return "mkdir" }
func (m *MkdirCommand) Description() string { return "Create a directory" }
func (m *MkdirCommand) Usage() string       { return "mkdir <path>..." }

func (m *MkdirCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, stdio cmd.IO) (int, error) {
	return eachPath(args, func(p string) error {
		return api.Mkdir(ctx, p)
	})
}

func (m *MkdirCommand) GetFlags() *cmd.CommandFlagSet { return nil }

type RmdirCommand struct {
}

func (r *RmdirCommand) Name() string        { return "rmdir" }
func (r *RmdirCommand) Description() string { return "Remove a directory and everything below it" }
func (r *RmdirCommand) Usage() string       { return "rmdir <path>..." }

func (r *RmdirCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, stdio cmd.IO) (int, error) {
	return eachPath(args, func(p string) error {
		return api.Rmdir(ctx, p)
	})
}

func (r *RmdirCommand) GetFlags() *cmd.CommandFlagSet { return nil }

type UnlinkCommand struct {
}

func (u *UnlinkCommand) Name() string        { return "unlink" }
func (u *UnlinkCommand) Description() string { return "Remove a file" }
func (u *UnlinkCommand) Usage() string       { return "unlink <path>..." }

func (u *UnlinkCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, stdio cmd.IO) (int, error) {
	return eachPath(args, func(p string) error {
		return api.Unlink(ctx, p)
	})
}

func (u *UnlinkCommand) GetFlags() *cmd.CommandFlagSet { return nil }

// eachPath stops at the first failing path.
func eachPath(args *cmd.CommandArgs, fn func(p string) error) (int, error) {
	if len(args.Args) == 0 {
		return 2, cmd.ErrUsage
	}
	for _, p := range args.Args {
		if err := fn(p); err != nil {
			return 1, err
		}
	}
	return 0, nil
}
