package builtin

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mwantia/folders/cmd"
)

type LsCommand struct {
}

func (ls *LsCommand) Name() string {
	return "ls"
}

func (ls *LsCommand) Description() string {
	return "List the entries of a directory"
}

func (ls *LsCommand) Usage() string {
	return "ls [-l] [--json] [path]"
}

// Execute lists the directory, folders are suffixed with a separator in
// the short form.
func (ls *LsCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, stdio cmd.IO) (int, error) {
	entries, err := api.Ls(ctx, args.Arg(0, "/"))
	if err != nil {
		return 1, err
	}

	if args.Bool("json") {
		enc := json.NewEncoder(stdio.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return 1, err
		}
		return 0, nil
	}

	if !args.Bool("long") {
		for _, entry := range entries {
			name := entry.Name
			if entry.IsFolder() {
				name += "/"
			}
			fmt.Fprintln(stdio.Out, name)
		}
		return 0, nil
	}

	tw := tabwriter.NewWriter(stdio.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, entry := range entries {
		kind, modified := entry.Type, "-"
		if entry.IsFolder() {
			kind = "folder"
		}
		if kind == "" {
			kind = "-"
		}
		if entry.ModificationTime > 0 {
			modified = time.UnixMilli(entry.ModificationTime).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t %s\n", kind, entry.Size, modified, entry.Name)
	}
	if err := tw.Flush(); err != nil {
		return 1, err
	}
	return 0, nil
}

func (ls *LsCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"long": {Name: "long", Short: "l", Type: "bool", Description: "Print type, size and modification time"},
			"json": {Name: "json", Type: "bool", Description: "Print the entries as JSON"},
		},
	}
}
