package lastwords

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
)

func TestNotifyAllIsolatesPanics(t *testing.T) {
	var buf bytes.Buffer
	var reported []error
	r := NewListenerRegistry(log.New(&buf, "", 0), func(err error) {
		reported = append(reported, err)
	})

	first := &counter{}
	last := &counter{}
	r.Register(first)
	r.Register(ListenerFunc(func() { panic("listener exploded") }))
	r.Register(ListenerFunc(func() { panic(errors.New("typed failure")) }))
	r.Register(last)

	r.NotifyAll()

	if first.count() != 1 || last.count() != 1 {
		t.Errorf("healthy listeners notified %d and %d times, want 1 each", first.count(), last.count())
	}
	if len(reported) != 2 {
		t.Fatalf("reported %d errors, want 2", len(reported))
	}
	if !strings.Contains(buf.String(), "listener exploded") {
		t.Errorf("log output %q does not mention the panic", buf.String())
	}

	var sawTyped bool
	for _, err := range reported {
		if errors.Cause(err).Error() == "typed failure" {
			sawTyped = true
		}
	}
	if !sawTyped {
		t.Error("panic with an error value was not wrapped")
	}
}

func TestNotifyAllUsesSnapshot(t *testing.T) {
	r := NewListenerRegistry(log.New(&bytes.Buffer{}, "", 0), nil)

	late := &counter{}
	r.Register(ListenerFunc(func() { r.Register(late) }))
	r.NotifyAll()

	if late.count() != 0 {
		t.Error("listener registered during notification was called in the same round")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestFuncListenerIdentity(t *testing.T) {
	r := NewListenerRegistry(nil, nil)
	a := ListenerFunc(func() {})
	b := ListenerFunc(func() {})

	r.Register(a)
	r.Register(b)
	r.Register(a)
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	r.Unregister(a)
	r.Unregister(a)
	if r.Len() != 1 {
		t.Errorf("Len() = %d after Unregister, want 1", r.Len())
	}
}

func TestListenerRegistryConcurrentAccess(t *testing.T) {
	r := NewListenerRegistry(log.New(&bytes.Buffer{}, "", 0), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l := ListenerFunc(func() {})
			r.Register(l)
			r.Unregister(l)
		}()
		go func() {
			defer wg.Done()
			r.NotifyAll()
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
