package bind

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/chazu/mirrorbind/descriptor"
)

// Ownership states for a wrapper. An explicit enum rather than a bool so a
// future shared-ownership state stays additive.
type Ownership int

const (
	Borrowed Ownership = iota
	Owned
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}

// Disposer is the optional native destruction hook. When an owned wrapper is
// released and its instance implements Disposer, Dispose runs exactly once.
type Disposer interface {
	Dispose()
}

// Wrapper is the lifetime-managed association between a runtime-visible
// handle and a native instance. Release may run on the runtime's finalizer
// goroutine, so the released flag is claimed atomically; everything else is
// serialized by the runtime's single execution context.
type Wrapper struct {
	id        string
	desc      *descriptor.TypeDescriptor
	target    reflect.Value // pointer to the native struct
	ownership Ownership
	released  atomic.Bool
}

// Own wraps ptr (a reflect pointer to the native struct) and takes
// responsibility for destroying it on release.
func Own(desc *descriptor.TypeDescriptor, ptr reflect.Value) *Wrapper {
	return newWrapper(desc, ptr, Owned)
}

// Borrow wraps ptr without taking ownership: release never destroys the
// underlying instance.
func Borrow(desc *descriptor.TypeDescriptor, ptr reflect.Value) *Wrapper {
	return newWrapper(desc, ptr, Borrowed)
}

func newWrapper(desc *descriptor.TypeDescriptor, ptr reflect.Value, o Ownership) *Wrapper {
	if ptr.Kind() != reflect.Pointer || ptr.Type().Elem() != desc.Type {
		panic(fmt.Sprintf("bind: wrapper target must be *%s, got %s", desc.Type, ptr.Type()))
	}
	return &Wrapper{
		id:        strings.ToLower(desc.Name) + "_" + uuid.New().String(),
		desc:      desc,
		target:    ptr,
		ownership: o,
	}
}

// ID returns the wrapper's unique debug id.
func (w *Wrapper) ID() string { return w.id }

// Descriptor returns the wrapped class descriptor.
func (w *Wrapper) Descriptor() *descriptor.TypeDescriptor { return w.desc }

// Ownership reports whether this wrapper owns the native instance.
func (w *Wrapper) Ownership() Ownership { return w.ownership }

// Released reports whether the wrapper has been released.
func (w *Wrapper) Released() bool { return w.released.Load() }

// Native returns the pointer to the live native instance, checking liveness
// first. Every property and method access goes through here.
func (w *Wrapper) Native() (reflect.Value, error) {
	if w.released.Load() {
		return reflect.Value{}, InvalidObjectErr(w.desc.Name)
	}
	return w.target, nil
}

// Field returns the addressable field described by fd, checking liveness.
func (w *Wrapper) Field(fd *descriptor.FieldDescriptor) (reflect.Value, error) {
	ptr, err := w.Native()
	if err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem().FieldByIndex(fd.Index), nil
}

// Release ends the wrapper's lifetime. For owned wrappers the native
// instance's Dispose hook runs, exactly once across any number of Release
// calls from any goroutine. A second Release reports InvalidObjectError
// instead of double-destroying.
func (w *Wrapper) Release() error {
	if !w.released.CompareAndSwap(false, true) {
		return InvalidObjectErr(w.desc.Name)
	}
	if w.ownership == Owned {
		if d, ok := w.target.Interface().(Disposer); ok {
			d.Dispose()
		}
	}
	return nil
}

// String renders the wrapper for logs.
func (w *Wrapper) String() string {
	state := "live"
	if w.Released() {
		state = "released"
	}
	return fmt.Sprintf("<%s %s %s>", w.desc.Name, w.id, state)
}
