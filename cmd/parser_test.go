package cmd

import (
	"errors"
	"slices"
	"testing"
)

func testFlagSet() *CommandFlagSet {
	return &CommandFlagSet{
		Flags: map[string]*CommandFlag{
			"long":   {Name: "long", Short: "l", Type: "bool"},
			"offset": {Name: "offset", Short: "o", Type: "int", Default: int64(0)},
			"file":   {Name: "file", Short: "f", Type: "string"},
		},
	}
}

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name   string
		raw    []string
		args   []string
		long   bool
		offset int64
		file   string
	}{
		{"positional only", []string{"/a", "/b"}, []string{"/a", "/b"}, false, 0, ""},
		{"short bool", []string{"-l", "/a"}, []string{"/a"}, true, 0, ""},
		{"combined short", []string{"-lo5", "/a"}, []string{"/a"}, true, 5, ""},
		{"short with value", []string{"-o", "12", "/a"}, []string{"/a"}, false, 12, ""},
		{"long with equals", []string{"--offset=7", "--file=x.txt"}, nil, false, 7, "x.txt"},
		{"long with value", []string{"--file", "y.txt", "/a"}, []string{"/a"}, false, 0, "y.txt"},
		{"separator", []string{"-l", "--", "-o", "/a"}, []string{"-o", "/a"}, true, 0, ""},
		{"stdin dash", []string{"-"}, []string{"-"}, false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := NewParser(testFlagSet()).Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if !slices.Equal(args.Args, tt.args) {
				t.Errorf("Expected args %v, got %v", tt.args, args.Args)
			}
			if args.Bool("long") != tt.long || args.Int("offset") != tt.offset || args.String("file") != tt.file {
				t.Errorf("Unexpected flags: %v", args.Flags)
			}
		})
	}
}

func TestParser_Errors(t *testing.T) {
	required := testFlagSet()
	required.Flags["file"].Required = true

	tests := []struct {
		name    string
		flagSet *CommandFlagSet
		raw     []string
	}{
		{"unknown long", testFlagSet(), []string{"--nope"}},
		{"unknown short", testFlagSet(), []string{"-x"}},
		{"missing value", testFlagSet(), []string{"--offset"}},
		{"invalid int", testFlagSet(), []string{"-o", "ten"}},
		{"required", required, []string{"/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewParser(tt.flagSet).Parse(tt.raw); !errors.Is(err, ErrUsage) {
				t.Errorf("Expected ErrUsage, got %v", err)
			}
		})
	}
}

func TestParser_NilFlagSet(t *testing.T) {
	args, err := NewParser(nil).Parse([]string{"/a"})
	if err != nil || args.Arg(0, "") != "/a" || args.Arg(1, "def") != "def" {
		t.Errorf("Unexpected result: %+v, %v", args, err)
	}
}
