package memory

import (
	"strings"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

// This file contains internal "unsafe" methods that perform operations without acquiring locks.
// These methods MUST only be called when the caller already holds the appropriate lock.

type keyKind int

const (
	kindMissing keyKind = iota
	kindFile
	kindFolder
)

// statUnsafe classifies key. A folder exists when its marker or any deeper key exists.
// MUST be called while holding at least a read lock.
func (mb *MemoryBackend) statUnsafe(key string) (keyKind, *object) {
	if key == "" {
		return kindFolder, nil
	}

	if obj, exists := mb.objects.Get(key); exists {
		return kindFile, obj
	}

	prefix := key + "/"
	found := false
	mb.objects.Ascend(prefix, func(k string, _ *object) bool {
		found = strings.HasPrefix(k, prefix)
		return false
	})

	if found {
		return kindFolder, nil
	}
	return kindMissing, nil
}

// fileAncestorUnsafe reports whether any parent of key is stored as a file.
// MUST be called while holding at least a read lock.
func (mb *MemoryBackend) fileAncestorUnsafe(key string) bool {
	for _, parent := range data.Parents(key) {
		if _, exists := mb.objects.Get(parent); exists {
			return true
		}
	}
	return false
}

// scanUnsafe collects every key below prefix in order.
// MUST be called while holding at least a read lock.
func (mb *MemoryBackend) scanUnsafe(prefix string) []backend.RawObject {
	var raw []backend.RawObject
	mb.objects.Ascend(prefix, func(k string, obj *object) bool {
		if !strings.HasPrefix(k, prefix) {
			return false
		}

		raw = append(raw, backend.RawObject{
			Key:          k,
			Size:         int64(len(obj.content)),
			LastModified: obj.modified,
		})
		return true
	})
	return raw
}

// deletePrefixUnsafe removes every key below prefix and returns the count.
// MUST be called while holding a write lock.
func (mb *MemoryBackend) deletePrefixUnsafe(prefix string) int {
	var keys []string
	mb.objects.Ascend(prefix, func(k string, _ *object) bool {
		if !strings.HasPrefix(k, prefix) {
			return false
		}
		keys = append(keys, k)
		return true
	})

	for _, k := range keys {
		mb.objects.Delete(k)
	}
	return len(keys)
}
