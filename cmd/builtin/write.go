package builtin

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/cmd"
)

type WriteCommand struct {
}

func (w *WriteCommand) Name() string {
	return "write"
}

func (w *WriteCommand) Description() string {
	return "Write the given text, a local file or stdin to a file"
}

func (w *WriteCommand) Usage() string {
	return "write [-f file] <path> [text...]"
}

// Execute streams the source without buffering it. Text arguments are
// joined with spaces, without arguments stdin is used.
func (w *WriteCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, stdio cmd.IO) (int, error) {
	if len(args.Args) == 0 {
		return 2, cmd.ErrUsage
	}

	var src io.Reader
	switch file := args.String("file"); {
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return 1, err
		}
		defer f.Close()
		src = f
	case len(args.Args) > 1:
		src = strings.NewReader(strings.Join(args.Args[1:], " "))
	case stdio.In != nil:
		src = stdio.In
	default:
		return 2, cmd.ErrUsage
	}

	result, err := api.Write(ctx, args.Args[0], src, backend.SizeOf(src))
	if err != nil {
		return 1, err
	}

	keys := make([]string, 0, len(result))
	for key := range result {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(stdio.Out, "%s: %v\n", key, result[key])
	}
	return 0, nil
}

func (w *WriteCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"file": {Name: "file", Short: "f", Type: "string", Description: "Local file to upload"},
		},
	}
}
