package tasks

import (
	"strings"
	"sync"

	"github.com/askiada/go-assetpipe/internal/manifest"
)

// Build is the state handed from one task of a build to the next: the bundles loaded by
// "bundles" and the revisions produced by "rev". A new Build is created for every run.
type Build struct {
	mu        sync.RWMutex
	manifest  *manifest.Manifest
	revisions map[string]string
}

func NewBuild() *Build {
	return &Build{revisions: map[string]string{}}
}

func (b *Build) setManifest(m *manifest.Manifest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manifest = m
}

// Manifest returns the bundles loaded for this build, or nil.
func (b *Build) Manifest() *manifest.Manifest {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.manifest
}

func (b *Build) addRevision(from, to string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revisions[from] = to
}

// Revisions returns a copy of the original -> revved path map, relative to the output directory.
func (b *Build) Revisions() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	res := make(map[string]string, len(b.revisions))
	for k, v := range b.revisions {
		res[k] = v
	}

	return res
}

// Revised returns the revved name of p, or p when it was not revved.
// A leading slash is preserved.
func (b *Build) Revised(p string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	trimmed := strings.TrimPrefix(p, "/")
	if to, ok := b.revisions[trimmed]; ok {
		return p[:len(p)-len(trimmed)] + to
	}

	return p
}
