package surface

import (
	"runtime"
	"testing"
)

type mockSurface struct {
	id        ID
	finishing bool
	destroyed bool
	requested int
}

func (m *mockSurface) ID() ID {
	return m.id
}

func (m *mockSurface) Alive() bool {
	return !m.finishing && !m.destroyed
}

func (m *mockSurface) RequestFinish() {
	m.requested++
	m.finishing = true
}

func TestMockSurface(t *testing.T) {
	var _ Surface = (*mockSurface)(nil)
}

func TestWeakHandleLiveness(t *testing.T) {
	tests := []struct {
		name      string
		finishing bool
		destroyed bool
		wantAlive bool
	}{
		{name: "Alive", wantAlive: true},
		{name: "Finishing", finishing: true, wantAlive: false},
		{name: "Destroyed", destroyed: true, wantAlive: false},
		{name: "Finishing and destroyed", finishing: true, destroyed: true, wantAlive: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockSurface{id: "main", finishing: tt.finishing, destroyed: tt.destroyed}
			h := Weak(s)

			if h.ID() != "main" {
				t.Errorf("ID() = %s, want main", h.ID())
			}
			if got := h.Alive(); got != tt.wantAlive {
				t.Errorf("Alive() = %v, want %v", got, tt.wantAlive)
			}

			got, ok := h.Get()
			if ok != tt.wantAlive {
				t.Errorf("Get() ok = %v, want %v", ok, tt.wantAlive)
			}
			if ok && got.ID() != "main" {
				t.Errorf("Get() returned surface %s, want main", got.ID())
			}
			runtime.KeepAlive(s)
		})
	}
}

func TestWeakHandleDoesNotKeepSurfaceReachable(t *testing.T) {
	h := func() Handle {
		return Weak(&mockSurface{id: "ephemeral"})
	}()

	for i := 0; i < 10 && h.Alive(); i++ {
		runtime.GC()
	}

	if h.Alive() {
		t.Error("Alive() = true after the surface became unreachable")
	}
	if h.ID() != "ephemeral" {
		t.Errorf("ID() = %s, want ephemeral", h.ID())
	}
}

func TestDirectHandle(t *testing.T) {
	s := &mockSurface{id: "0x1c00004"}
	h := Direct(s)

	if !h.Alive() {
		t.Fatal("Alive() = false, want true")
	}

	got, ok := h.Get()
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	got.RequestFinish()

	if s.requested != 1 {
		t.Errorf("RequestFinish called %d times, want 1", s.requested)
	}
	if h.Alive() {
		t.Error("Alive() = true after RequestFinish, want false")
	}
	if _, ok := h.Get(); ok {
		t.Error("Get() ok = true for finishing surface")
	}
}
