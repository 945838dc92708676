package backend

import "github.com/mwantia/folders/data"

const (
	msgRmdirConfigured = "Unable to delete configured services"
	msgMkdirConfigured = "Unable to mkdir inside configured services"
)

// CheckDepth rejects mkdir and rmdir on paths above the backend's floor.
// The path is canonicalised with a trailing separator first and only
// non-empty segments are counted, so "/svc/region/bucket/dir/" has depth 4.
func CheckDepth(op Capability, path string, minDepth int) error {
	if minDepth <= 0 {
		return nil
	}

	dir := data.WithTrailingSlash(path)
	if data.Depth(dir) >= minDepth {
		return nil
	}

	msg := msgRmdirConfigured
	if op == CapabilityMkdir {
		msg = msgMkdirConfigured
	}
	return data.NewError(data.ErrProtected, string(op), dir, nil).WithMessage("%s", msg)
}
