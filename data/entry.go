package data

import (
	"fmt"
	"strings"
	"time"
)

// FolderExtension marks an entry as a navigable container.
const FolderExtension = "+folder"

// Entry is one normalized listing result.
type Entry struct {
	Name             string         `json:"name"`
	FullPath         string         `json:"fullPath"`
	URI              string         `json:"uri"`
	Size             int64          `json:"size"`
	Extension        string         `json:"extension"`
	Type             string         `json:"type"`
	ModificationTime int64          `json:"modificationTime"`
	Meta             map[string]any `json:"meta,omitempty"`
}

// NewFolder creates a container entry named name below parent.
func NewFolder(parent, name string) *Entry {
	full := JoinPath(parent, name)
	return &Entry{
		Name:      name,
		FullPath:  full,
		URI:       full,
		Extension: FolderExtension,
		Meta:      make(map[string]any),
	}
}

// NewFile creates a leaf entry. Extension and type are derived from the name.
func NewFile(parent, name string, size int64) *Entry {
	full := JoinPath(parent, name)
	return &Entry{
		Name:      name,
		FullPath:  full,
		URI:       full,
		Size:      max(size, 0),
		Extension: Extension(name),
		Type:      MIMEType(name),
		Meta:      make(map[string]any),
	}
}

// WithTime sets the modification time. A zero time leaves the field at 0.
func (e *Entry) WithTime(t time.Time) *Entry {
	if !t.IsZero() {
		e.ModificationTime = t.UnixMilli()
	}
	return e
}

func (e *Entry) IsFolder() bool {
	return e.Extension == FolderExtension
}

// Validate checks the invariants every backend must honor.
func (e *Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: entry without name", ErrInvalidPath)
	}
	if strings.Contains(e.Name, "/") {
		return fmt.Errorf("%w: entry name '%s' contains a separator", ErrInvalidPath, e.Name)
	}
	if e.Size < 0 {
		return fmt.Errorf("entry '%s' has negative size %d", e.Name, e.Size)
	}
	if e.IsFolder() != (e.Type == "") {
		return fmt.Errorf("entry '%s' breaks folder/type invariant (extension=%q, type=%q)", e.Name, e.Extension, e.Type)
	}
	return nil
}

// ValidateListing checks that entries form a single-level, duplicate-free listing of dir.
func ValidateListing(dir string, entries []*Entry) error {
	want := Depth(dir) + 1
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return err
		}
		if _, exists := seen[entry.Name]; exists {
			return fmt.Errorf("duplicate entry '%s' in listing of '%s'", entry.Name, dir)
		}
		seen[entry.Name] = struct{}{}

		if got := Depth(entry.FullPath); got != want {
			return fmt.Errorf("entry '%s' is %d levels deep, listing of '%s' expects %d", entry.FullPath, got, dir, want)
		}
	}
	return nil
}
