package builtin

import (
	"context"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/cmd"
	"github.com/mwantia/folders/data"
)

type CatCommand struct {
}

func (c *CatCommand) Name() string {
	return "cat"
}

func (c *CatCommand) Description() string {
	return "Stream the content of a file"
}

func (c *CatCommand) Usage() string {
	return "cat [-o offset] [-n length] <path>"
}

func (c *CatCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, stdio cmd.IO) (int, error) {
	if len(args.Args) != 1 {
		return 2, cmd.ErrUsage
	}

	var result *data.CatResult
	var err error

	rng := data.Range{Offset: args.Int("offset"), Length: args.Int("length")}
	if rng.Offset > 0 || rng.Length > 0 {
		result, err = api.RangeCat(ctx, args.Args[0], rng)
	} else {
		result, err = api.Cat(ctx, args.Args[0])
	}
	if err != nil {
		return 1, err
	}
	defer result.Stream.Close()

	if _, err := backend.Copy(ctx, stdio.Out, result.Stream); err != nil {
		return 1, err
	}
	return 0, nil
}

func (c *CatCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"offset": {Name: "offset", Short: "o", Type: "int", Description: "First byte to read"},
			"length": {Name: "length", Short: "n", Type: "int", Description: "Number of bytes to read"},
		},
	}
}
