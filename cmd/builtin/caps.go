package builtin

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/cmd"
)

type CapsCommand struct {
}

func (c *CapsCommand) Name() string {
	return "caps"
}

func (c *CapsCommand) Description() string {
	return "Show the capabilities of the mount serving a path"
}

func (c *CapsCommand) Usage() string {
	return "caps [--json] [path]"
}

func (c *CapsCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, stdio cmd.IO) (int, error) {
	caps, err := api.Capabilities(args.Arg(0, "/"))
	if err != nil {
		return 1, err
	}

	features := caps.Features()
	if args.Bool("json") {
		if err := json.NewEncoder(stdio.Out).Encode(map[string]any{
			"features":        features,
			"max_object_size": caps.MaxObjectSize,
			"min_depth":       caps.MinDepth,
		}); err != nil {
			return 1, err
		}
		return 0, nil
	}

	for _, name := range backend.AllCapabilities {
		fmt.Fprintf(stdio.Out, "%-16s %t\n", name, features[name])
	}
	fmt.Fprintf(stdio.Out, "%-16s %d\n", "max_object_size", caps.MaxObjectSize)
	fmt.Fprintf(stdio.Out, "%-16s %d\n", "min_depth", caps.MinDepth)
	return 0, nil
}

func (c *CapsCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"json": {Name: "json", Type: "bool", Description: "Print the descriptor as JSON"},
		},
	}
}
