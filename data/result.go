package data

import "io"

// CatResult is the outcome of a read. Stream can be consumed exactly once.
type CatResult struct {
	Stream io.ReadCloser
	// Size is the declared length, -1 when the backend cannot report it.
	Size int64
	Name string
}

// Range addresses part of a file. A Length <= 0 reads to the end.
type Range struct {
	Offset int64
	Length int64
}

// End returns the inclusive last byte, or -1 when reading to the end.
func (r Range) End() int64 {
	if r.Length <= 0 {
		return -1
	}
	return r.Offset + r.Length - 1
}

// WriteResult is a backend-defined success marker.
type WriteResult map[string]any

const WriteSuccessMessage = "write uri success"

func WriteSuccess(uri string) WriteResult {
	return WriteResult{
		"message": WriteSuccessMessage,
		"uri":     uri,
	}
}

// ObjectWritten is the marker returned by object stores.
func ObjectWritten(etag, versionID string) WriteResult {
	return WriteResult{
		"ETag":      etag,
		"VersionId": versionID,
	}
}
