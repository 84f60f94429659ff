package builder

import (
	"github.com/binforge/binforge/internal/platform"
)

// Registry collects sources before a build. Registration order is
// preserved; multiple sources may target the same (OS, arch) pair, for
// example multi-part artifacts, and all matching sources are downloaded.
//
// A Registry is not safe for concurrent mutation.
type Registry struct {
	sources []Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a source. Empty OS or Arch tags default to the current
// host's values at call time, so a source registered for "this platform"
// stays pinned to whatever the host was when Register executed. Non-empty
// tags are normalized to canonical GOOS/GOARCH spellings.
func (r *Registry) Register(src Source) {
	host := platform.Host()

	if src.OS == "" {
		src.OS = host.OS
	} else {
		src.OS = platform.NormalizeOS(src.OS)
	}

	if src.Arch == "" {
		src.Arch = host.Arch
	} else {
		src.Arch = platform.NormalizeArch(src.Arch)
	}

	r.sources = append(r.sources, src)
}

// Matching returns every source whose OS and architecture exactly equal
// the arguments, in registration order.
func (r *Registry) Matching(os, arch string) []Source {
	var matched []Source
	for _, src := range r.sources {
		if src.Matches(os, arch) {
			matched = append(matched, src)
		}
	}
	return matched
}

// Sources returns all registered sources in registration order.
func (r *Registry) Sources() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}
