package data

import (
	"slices"
	"strings"
)

// CleanPath canonicalises a virtual path into its relative form without
// leading or trailing separators. "", "." and "/" all address the root.
// Segments are never dropped or reordered: "..", "." and empty inner
// segments are reported as invalid.
func CleanPath(p string) (string, error) {
	rel := strings.TrimPrefix(p, "/")
	rel = strings.TrimSuffix(rel, "/")

	if rel == "" || rel == "." {
		return "", nil
	}

	for _, segment := range strings.Split(rel, "/") {
		switch segment {
		case "":
			return "", NewError(ErrInvalidPath, "normalize", p, nil).WithMessage("empty segment in path '%s'", p)
		case ".", "..":
			return "", NewError(ErrInvalidPath, "normalize", p, nil).WithMessage("relative segment '%s' in path '%s'", segment, p)
		}
	}
	return rel, nil
}

// Segments returns the non-empty segments of p.
func Segments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == '/'
	})
}

// Depth counts the non-empty segments of p.
func Depth(p string) int {
	return len(Segments(p))
}

// JoinPath builds an absolute virtual path from its parts.
func JoinPath(parts ...string) string {
	var segments []string
	for _, part := range parts {
		segments = append(segments, Segments(part)...)
	}
	return "/" + strings.Join(segments, "/")
}

// Parents returns every proper ancestor of a cleaned relative path,
// shallowest first: "a/b/c" yields "a" and "a/b".
func Parents(rel string) []string {
	var parents []string
	for i := range len(rel) {
		if rel[i] == '/' {
			parents = append(parents, rel[:i])
		}
	}
	return parents
}

// WithTrailingSlash canonicalises a directory path before mkdir and rmdir.
func WithTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// Base returns the last segment of p, or an empty string for the root.
func Base(p string) string {
	segments := Segments(p)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// SplitBucketKey splits an object storage path into bucket and key.
// The root yields an empty bucket.
func SplitBucketKey(p string) (bucket, key string, err error) {
	rel, err := CleanPath(p)
	if err != nil {
		return "", "", err
	}

	bucket, key, _ = strings.Cut(rel, "/")
	return bucket, key, nil
}

// CatalogAddress addresses database, table and metadata file in a catalog backend.
type CatalogAddress struct {
	Database string
	Table    string
	Metadata string
}

// Level returns how many parts are set: 0 (root) to 3 (metadata file).
func (ca CatalogAddress) Level() int {
	switch {
	case ca.Metadata != "":
		return 3
	case ca.Table != "":
		return 2
	case ca.Database != "":
		return 1
	}
	return 0
}

// SplitCatalog decomposes p into database, table and metadata file.
// The metadata file has to be one of allowed.
func SplitCatalog(p string, allowed []string) (CatalogAddress, error) {
	rel, err := CleanPath(p)
	if err != nil {
		return CatalogAddress{}, err
	}

	segments := Segments(rel)
	if len(segments) > 3 {
		return CatalogAddress{}, NewError(ErrUnderspecified, "normalize", p, nil).
			WithMessage("path '%s' has %d segments, expected database/table/metadata", p, len(segments))
	}

	var addr CatalogAddress
	if len(segments) > 0 {
		addr.Database = segments[0]
	}
	if len(segments) > 1 {
		addr.Table = segments[1]
	}
	if len(segments) > 2 {
		addr.Metadata = segments[2]
		if !slices.Contains(allowed, addr.Metadata) {
			return CatalogAddress{}, NotFound("normalize", p)
		}
	}
	return addr, nil
}

// ServiceAddress addresses service, region, bucket and key.
type ServiceAddress struct {
	Service string
	Region  string
	Bucket  string
	Key     string
}

// Level returns how many addressing parts are set, counting the key as one.
func (sa ServiceAddress) Level() int {
	switch {
	case sa.Key != "":
		return 4
	case sa.Bucket != "":
		return 3
	case sa.Region != "":
		return 2
	case sa.Service != "":
		return 1
	}
	return 0
}

// SplitService decomposes p into an upper-cased service tag, region, bucket and key.
func SplitService(p string) (ServiceAddress, error) {
	rel, err := CleanPath(p)
	if err != nil {
		return ServiceAddress{}, err
	}

	parts := strings.SplitN(rel, "/", 4)
	var addr ServiceAddress
	if rel == "" {
		return addr, nil
	}

	addr.Service = strings.ToUpper(parts[0])
	if len(parts) > 1 {
		addr.Region = parts[1]
	}
	if len(parts) > 2 {
		addr.Bucket = parts[2]
	}
	if len(parts) > 3 {
		addr.Key = parts[3]
	}
	return addr, nil
}
