package backend

import (
	"slices"

	"github.com/mwantia/folders/data"
)

// Capability names an operation or feature a backend can provide.
type Capability string

const (
	CapabilityCat      Capability = "cat"
	CapabilityLs       Capability = "ls"
	CapabilityWrite    Capability = "write"
	CapabilityUnlink   Capability = "unlink"
	CapabilityRmdir    Capability = "rmdir"
	CapabilityMkdir    Capability = "mkdir"
	CapabilityServer   Capability = "server"
	CapabilityRangeCat Capability = "range_cat"
)

// AllCapabilities lists every known capability in descriptor order.
var AllCapabilities = []Capability{
	CapabilityCat,
	CapabilityLs,
	CapabilityWrite,
	CapabilityUnlink,
	CapabilityRmdir,
	CapabilityMkdir,
	CapabilityServer,
	CapabilityRangeCat,
}

// Capabilities describes what a backend kind supports.
type Capabilities struct {
	Capabilities []Capability `json:"capabilities"`
	// MaxObjectSize limits a single write, 0 means unlimited.
	MaxObjectSize int64 `json:"max_object_size"`
	// MinDepth is the segment floor for mkdir and rmdir.
	MinDepth int `json:"min_depth"`
}

func NewCapabilities(caps ...Capability) *Capabilities {
	return &Capabilities{
		Capabilities: caps,
	}
}

// Contains checks if a capability is supported
func (c *Capabilities) Contains(cap Capability) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Capabilities, cap)
}

// Require returns an unsupported-operation error when cap is missing.
func (c *Capabilities) Require(cap Capability, backend string) error {
	if c.Contains(cap) {
		return nil
	}
	return data.Unsupported(string(cap), backend)
}

// Features renders the descriptor as the boolean record callers expect.
func (c *Capabilities) Features() map[Capability]bool {
	features := make(map[Capability]bool, len(AllCapabilities))
	for _, cap := range AllCapabilities {
		features[cap] = c.Contains(cap)
	}
	return features
}

// Without returns a copy of the descriptor missing the given capabilities.
func (c *Capabilities) Without(caps ...Capability) *Capabilities {
	copied := *c
	copied.Capabilities = slices.DeleteFunc(slices.Clone(c.Capabilities), func(cap Capability) bool {
		return slices.Contains(caps, cap)
	})
	return &copied
}
