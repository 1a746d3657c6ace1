package lastwords

import (
	"sync"

	"github.com/lastwords/lastwords/pkg/surface"
)

// SurfaceRegistry maps surface identity to a handle. Liveness always comes
// from the handle; the registry only forgets handles that report dead.
type SurfaceRegistry struct {
	mu      sync.Mutex
	handles map[surface.ID]surface.Handle
}

// NewSurfaceRegistry creates an empty registry
func NewSurfaceRegistry() *SurfaceRegistry {
	return &SurfaceRegistry{
		handles: make(map[surface.ID]surface.Handle),
	}
}

// Put stores h, replacing any handle with the same identity
func (r *SurfaceRegistry) Put(h surface.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.ID()] = h
}

// PruneDead removes every dead entry and returns how many remain
func (r *SurfaceRegistry) PruneDead() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, h := range r.handles {
		if !h.Alive() {
			delete(r.handles, id)
		}
	}
	return len(r.handles)
}

// CountAlive returns the number of live entries without pruning
func (r *SurfaceRegistry) CountAlive() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, h := range r.handles {
		if h.Alive() {
			n++
		}
	}
	return n
}

// Snapshot returns the surfaces that are alive right now. Dead entries are
// skipped, not reported.
func (r *SurfaceRegistry) Snapshot() []surface.Surface {
	r.mu.Lock()
	defer r.mu.Unlock()

	alive := make([]surface.Surface, 0, len(r.handles))
	for _, h := range r.handles {
		if s, ok := h.Get(); ok {
			alive = append(alive, s)
		}
	}
	return alive
}

// Clear forgets every entry
func (r *SurfaceRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.handles)
}

// Len returns the number of entries, dead or alive
func (r *SurfaceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
