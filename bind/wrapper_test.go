package bind

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/chazu/mirrorbind/descriptor"
)

type resource struct {
	Value    int64
	disposed int
}

func (r *resource) Dispose() { r.disposed++ }

func describeResource(t *testing.T) *descriptor.TypeDescriptor {
	t.Helper()
	d, err := descriptor.NewRegistry().Describe(resource{})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	return d
}

func TestOwnedReleaseDisposesOnce(t *testing.T) {
	d := describeResource(t)
	r := &resource{}
	w := Own(d, reflect.ValueOf(r))

	if err := w.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if r.disposed != 1 {
		t.Fatalf("expected exactly one Dispose, got %d", r.disposed)
	}

	// A second release reports InvalidObjectError and must not dispose again.
	err := w.Release()
	var be *Error
	if !errors.As(err, &be) || be.Kind != InvalidObject {
		t.Fatalf("expected InvalidObjectError, got %v", err)
	}
	if r.disposed != 1 {
		t.Errorf("double release ran Dispose %d times", r.disposed)
	}
}

func TestBorrowedReleaseNeverDisposes(t *testing.T) {
	d := describeResource(t)
	r := &resource{}
	w := Borrow(d, reflect.ValueOf(r))

	if err := w.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if r.disposed != 0 {
		t.Error("borrowed wrapper must never dispose the native instance")
	}
}

func TestAccessAfterReleaseFails(t *testing.T) {
	d := describeResource(t)
	r := &resource{Value: 7}
	w := Own(d, reflect.ValueOf(r))

	if _, err := w.Native(); err != nil {
		t.Fatalf("Native before release: %v", err)
	}
	if err := w.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if _, err := w.Native(); err == nil {
		t.Fatal("Native after release must fail")
	}
	fd := d.Field("value")
	if fd == nil {
		t.Fatal("missing value field")
	}
	_, err := w.Field(fd)
	var be *Error
	if !errors.As(err, &be) || be.Kind != InvalidObject {
		t.Fatalf("expected InvalidObjectError on field access, got %v", err)
	}
}

// Release may race between the finalizer goroutine and an explicit dispose;
// the native instance must still be destroyed exactly once.
func TestConcurrentReleaseDisposesOnce(t *testing.T) {
	d := describeResource(t)
	r := &resource{}
	w := Own(d, reflect.ValueOf(r))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Release()
		}()
	}
	wg.Wait()

	if r.disposed != 1 {
		t.Fatalf("expected exactly one Dispose, got %d", r.disposed)
	}
}
