package backend

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/mwantia/folders/data"
	"golang.org/x/sync/errgroup"
)

// RawObject is one key as returned by a flat key-prefix backend.
type RawObject struct {
	Key          string
	Size         int64
	LastModified time.Time
	Meta         map[string]any
}

// PrefixListing builds a single-level listing of dir from a backend that
// answered a prefix query. prefixes are native common prefixes and come
// first; objects are grouped manually on delimiter so backends without a
// native delimiter primitive can pass their flat key space as well.
// The marker object equal to prefix is excluded and every child name
// appears once, first occurrence wins.
func PrefixListing(dir, prefix, delimiter string, objects []RawObject, prefixes []string) []*data.Entry {
	if delimiter == "" {
		delimiter = "/"
	}

	entries := make([]*data.Entry, 0, len(prefixes)+len(objects))
	seen := make(map[string]struct{}, cap(entries))

	add := func(entry *data.Entry) {
		if _, exists := seen[entry.Name]; exists {
			return
		}
		seen[entry.Name] = struct{}{}
		entries = append(entries, entry)
	}

	for _, p := range prefixes {
		name, _, _ := strings.Cut(strings.TrimPrefix(p, prefix), delimiter)
		if name == "" || !strings.HasPrefix(p, prefix) {
			continue
		}
		add(data.NewFolder(dir, name))
	}

	for _, object := range objects {
		if !strings.HasPrefix(object.Key, prefix) {
			continue
		}

		rel := strings.TrimPrefix(object.Key, prefix)
		if rel == "" {
			continue
		}

		if name, _, nested := strings.Cut(rel, delimiter); nested {
			if name != "" {
				add(data.NewFolder(dir, name))
			}
			continue
		}

		entry := data.NewFile(dir, rel, object.Size).WithTime(object.LastModified)
		maps.Copy(entry.Meta, object.Meta)
		add(entry)
	}
	return entries
}

// FolderListing maps an enumerated or queried child set to folder entries.
func FolderListing(dir string, names []string, meta map[string]any) []*data.Entry {
	entries := make([]*data.Entry, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		if _, exists := seen[name]; exists || name == "" {
			continue
		}
		seen[name] = struct{}{}

		entry := data.NewFolder(dir, name)
		maps.Copy(entry.Meta, meta)
		entries = append(entries, entry)
	}
	return entries
}

// FileListing maps an enumerated set of synthetic files, like catalog
// metadata files, to leaf entries.
func FileListing(dir string, names []string) []*data.Entry {
	entries := make([]*data.Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, data.NewFile(dir, name, 0))
	}
	return entries
}

// EnrichFunc fills additional fields of one folder entry.
type EnrichFunc func(ctx context.Context, entry *data.Entry) error

// Enrich runs fn for every folder entry in parallel, bounded by the
// configured concurrency. Each call works on a copy that replaces
// entries[i] only on success, so a failed summary leaves the original
// entry in place and listing order is untouched. Failures are logged and
// counted but never returned; only a cancelled ctx fails the listing.
func Enrich(ctx context.Context, settings *Settings, entries []*data.Entry, fn EnrichFunc) error {
	var g errgroup.Group
	g.SetLimit(settings.EnrichConcurrency)

	for i, entry := range entries {
		if !entry.IsFolder() {
			continue
		}

		g.Go(func() error {
			enriched := *entry
			enriched.Meta = maps.Clone(entry.Meta)
			if enriched.Meta == nil {
				enriched.Meta = make(map[string]any)
			}

			if err := fn(ctx, &enriched); err != nil {
				settings.Logger.Warn("Enrich: skipping '%s': %v", entry.FullPath, err)
				settings.Metrics.ObserveEnrichmentFailure(settings.Kind)
				return nil
			}

			entries[i] = &enriched
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}
