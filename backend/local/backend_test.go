package local

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

func newTestBackend(t *testing.T, opts backend.Options) (*LocalBackend, string) {
	t.Helper()

	dir := t.TempDir()
	if opts == nil {
		opts = backend.Options{}
	}
	opts["path"] = dir

	lb, err := NewLocalBackend(opts, nil)
	if err != nil {
		t.Fatalf("Backend init failed: %v", err)
	}
	if err := lb.Open(t.Context()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		lb.Close(t.Context())
	})
	return lb, dir
}

func TestLocal_RoundTrip(t *testing.T) {
	ctx := t.Context()
	lb, dir := newTestBackend(t, nil)

	result, err := lb.Write(ctx, "/docs/deep/readme.md", strings.NewReader("# readme"), -1)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if result["uri"] != "/docs/deep/readme.md" || result["message"] != data.WriteSuccessMessage {
		t.Errorf("Unexpected write result: %v", result)
	}

	content, err := os.ReadFile(filepath.Join(dir, "docs", "deep", "readme.md"))
	if err != nil || string(content) != "# readme" {
		t.Fatalf("File not written to disk: %q (%v)", content, err)
	}

	cat, err := lb.RangeCat(ctx, "/docs/deep/readme.md", data.Range{Offset: 2, Length: 3})
	if err != nil {
		t.Fatalf("RangeCat failed: %v", err)
	}
	got, _ := io.ReadAll(cat.Stream)
	cat.Stream.Close()
	if string(got) != "rea" || cat.Size != 3 || cat.Name != "readme.md" {
		t.Errorf("Unexpected range result %q size=%d name=%s", got, cat.Size, cat.Name)
	}

	entries, err := lb.Ls(ctx, "/docs")
	if err != nil {
		t.Fatalf("Ls failed: %v", err)
	}
	if len(entries) != 1 || !entries[0].IsFolder() || entries[0].FullPath != "/docs/deep" {
		t.Errorf("Unexpected listing: %+v", entries)
	}
	if err := data.ValidateListing("/docs", entries); err != nil {
		t.Errorf("Listing invalid: %v", err)
	}

	entries, _ = lb.Ls(ctx, "/docs/deep")
	if len(entries) != 1 || entries[0].Size != 8 || entries[0].Type != "text/markdown" || entries[0].ModificationTime == 0 {
		t.Errorf("Unexpected file entry: %+v", entries)
	}
}

func TestLocal_Errors(t *testing.T) {
	ctx := t.Context()
	lb, dir := newTestBackend(t, backend.Options{"maxObjectSize": "4"})

	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("abc"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "dir"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"ls file", func() error { _, err := lb.Ls(ctx, "/file.txt"); return err }, data.ErrNotDirectory},
		{"ls missing", func() error { _, err := lb.Ls(ctx, "/missing"); return err }, data.ErrNotExist},
		{"cat dir", func() error { _, err := lb.Cat(ctx, "/dir"); return err }, data.ErrIsDirectory},
		{"cat missing", func() error { _, err := lb.Cat(ctx, "/missing.txt"); return err }, data.ErrNotExist},
		{"write dir", func() error { _, err := lb.Write(ctx, "/dir", strings.NewReader("x"), 1); return err }, data.ErrIsDirectory},
		{"write too large", func() error { _, err := lb.Write(ctx, "/big.bin", strings.NewReader("0123456789"), -1); return err }, data.ErrTooLarge},
		{"unlink dir", func() error { return lb.Unlink(ctx, "/dir") }, data.ErrIsDirectory},
		{"mkdir existing file", func() error { return lb.Mkdir(ctx, "/file.txt/") }, data.ErrExist},
		{"mkdir root", func() error { return lb.Mkdir(ctx, "/") }, data.ErrProtected},
		{"rmdir file", func() error { return lb.Rmdir(ctx, "/file.txt/") }, data.ErrNotDirectory},
		{"escape", func() error { _, err := lb.Ls(ctx, "/../etc"); return err }, data.ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "big.bin")); !os.IsNotExist(err) {
		t.Errorf("Oversized write left a file behind")
	}
	entries, _ := lb.Ls(ctx, "/")
	if len(entries) != 2 {
		t.Errorf("Expected no temporary files to remain, got %d entries", len(entries))
	}
}

func TestLocal_DirectoryOperations(t *testing.T) {
	ctx := t.Context()
	lb, dir := newTestBackend(t, nil)

	if err := lb.Mkdir(ctx, "/projects/"); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if _, err := lb.Write(ctx, "/projects/a/b.txt", strings.NewReader("b"), 1); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := lb.Unlink(ctx, "/projects/a/b.txt"); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	if err := lb.Rmdir(ctx, "/projects/"); err != nil {
		t.Fatalf("Rmdir failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "projects")); !os.IsNotExist(err) {
		t.Errorf("Directory still exists after rmdir")
	}
}

func TestLocal_Options(t *testing.T) {
	if _, err := NewLocalBackend(backend.Options{}, nil); !errors.Is(err, data.ErrConfig) {
		t.Errorf("Expected ErrConfig without path, got %v", err)
	}

	dir := t.TempDir()
	lb, err := NewLocalBackend(backend.Options{"connectionString": "file://" + dir}, nil)
	if err != nil {
		t.Fatalf("Backend init failed: %v", err)
	}
	if lb.options.Path != filepath.Clean(dir) {
		t.Errorf("Expected path '%s', got '%s'", dir, lb.options.Path)
	}

	missing, _ := NewLocalBackend(backend.Options{"path": filepath.Join(dir, "absent")}, nil)
	if err := missing.Open(t.Context()); !errors.Is(err, data.ErrConfig) {
		t.Errorf("Expected ErrConfig for a missing directory, got %v", err)
	}
	if _, err := missing.Ls(t.Context(), "/"); !errors.Is(err, data.ErrClosed) {
		t.Errorf("Expected ErrClosed before open, got %v", err)
	}
}

func TestLocal_SymlinkedDirectories(t *testing.T) {
	ctx := t.Context()
	lb, dir := newTestBackend(t, nil)

	if _, err := lb.Write(ctx, "/real/inner.txt", strings.NewReader("inner"), -1); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := os.Symlink("real", filepath.Join(dir, "link")); err != nil {
		t.Skipf("Symlinks unavailable: %v", err)
	}
	if err := os.Symlink("real/inner.txt", filepath.Join(dir, "file-link")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}
	if err := os.Symlink(filepath.Join(t.TempDir(), "outside"), filepath.Join(dir, "dangling")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	entries, err := lb.Ls(ctx, "/")
	if err != nil {
		t.Fatalf("Ls failed: %v", err)
	}
	if err := data.ValidateListing("/", entries); err != nil {
		t.Errorf("Listing invalid: %v", err)
	}

	byName := make(map[string]*data.Entry)
	for _, entry := range entries {
		byName[entry.Name] = entry
	}
	if link := byName["link"]; link == nil || !link.IsFolder() || link.Meta["symlink"] != true {
		t.Errorf("Expected link to a directory to be a folder, got %+v", link)
	}
	if link := byName["file-link"]; link == nil || link.IsFolder() || link.Size != 5 {
		t.Errorf("Expected link to a file to be a 5 byte file, got %+v", link)
	}
	if link := byName["dangling"]; link == nil || link.IsFolder() {
		t.Errorf("Expected unresolvable link to stay a leaf, got %+v", link)
	}

	if _, err := lb.Cat(ctx, "/link"); !errors.Is(err, data.ErrIsDirectory) {
		t.Errorf("Expected cat on a linked directory to fail with is-directory, got %v", err)
	}
	inner, err := lb.Ls(ctx, "/link")
	if err != nil || len(inner) != 1 || inner[0].Name != "inner.txt" {
		t.Errorf("Expected the linked directory contents, got %+v (%v)", inner, err)
	}
}
