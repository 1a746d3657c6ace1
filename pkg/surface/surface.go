package surface

import "weak"

// ID identifies a surface for as long as it is alive
type ID string

// Surface is a visible unit of the host UI (a window, a screen)
type Surface interface {
	// ID returns the stable identity of this surface
	ID() ID

	// Alive reports whether the surface is neither finishing nor destroyed
	Alive() bool

	// RequestFinish asks the surface to begin closing. It does not wait.
	RequestFinish()
}

// Handle is a reference to a surface held by the detector
type Handle interface {
	// ID returns the identity the handle was created with
	ID() ID

	// Alive reports whether the referenced surface is still alive
	Alive() bool

	// Get returns the surface if it is still alive
	Get() (Surface, bool)
}

type weakHandle[T any, P interface {
	*T
	Surface
}] struct {
	id  ID
	ptr weak.Pointer[T]
}

// Weak returns a handle that does not keep s reachable. Once the host drops
// its last reference and the surface is collected, the handle reports dead.
func Weak[T any, P interface {
	*T
	Surface
}](s P) Handle {
	return &weakHandle[T, P]{
		id:  s.ID(),
		ptr: weak.Make((*T)(s)),
	}
}

func (h *weakHandle[T, P]) ID() ID {
	return h.id
}

func (h *weakHandle[T, P]) Alive() bool {
	_, ok := h.Get()
	return ok
}

func (h *weakHandle[T, P]) Get() (Surface, bool) {
	v := h.ptr.Value()
	if v == nil {
		return nil, false
	}
	s := P(v)
	if !s.Alive() {
		return nil, false
	}
	return s, true
}

type directHandle struct {
	s Surface
}

// Direct returns a handle for proxies whose liveness is answered by the host.
// The proxy is referenced, the host surface is not.
func Direct(s Surface) Handle {
	return directHandle{s: s}
}

func (h directHandle) ID() ID {
	return h.s.ID()
}

func (h directHandle) Alive() bool {
	return h.s.Alive()
}

func (h directHandle) Get() (Surface, bool) {
	if !h.s.Alive() {
		return nil, false
	}
	return h.s, true
}
