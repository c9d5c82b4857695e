// Package jsbind exposes described native classes to a JavaScript runtime
// (github.com/dop251/goja). For each registered class it wires a constructor
// function, accessor properties per field, one dispatch trampoline per
// method, statics and constants, and wrapper finalization.
package jsbind

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/dop251/goja"
	"github.com/tliron/commonlog"

	"github.com/chazu/mirrorbind/bind"
	"github.com/chazu/mirrorbind/descriptor"
)

var log = commonlog.GetLogger("mirrorbind.js")

// Binder binds classes from one descriptor registry into one goja runtime.
// Registration records are per (class, runtime): independent runtimes carry
// independent binders and never share instances.
type Binder struct {
	runtime  *goja.Runtime
	registry *descriptor.Registry
	classes  map[reflect.Type]*class
	conv     *converter
	sym      *goja.Symbol // hidden slot carrying the wrapper on bound objects
}

type class struct {
	desc  *descriptor.TypeDescriptor
	ctor  *goja.Object
	proto *goja.Object // shared accessors, trampolines, and dispose
}

// New creates a binder for the given runtime and registry.
func New(rt *goja.Runtime, reg *descriptor.Registry) *Binder {
	b := &Binder{
		runtime:  rt,
		registry: reg,
		classes:  map[reflect.Type]*class{},
		sym:      goja.NewSymbol("mirrorbind.wrapper"),
	}
	b.conv = &converter{b}
	return b
}

// RegisterAll registers the given descriptors into the namespace object in
// dependency order (nested classes first); the module-loader entry point.
func (b *Binder) RegisterAll(namespace *goja.Object, descs ...*descriptor.TypeDescriptor) error {
	for _, d := range descriptor.SortByDependency(descs) {
		if err := b.Register(d, namespace); err != nil {
			return err
		}
	}
	return nil
}

// Register wires one class into the namespace: a constructor function
// carrying statics and constants, and one shared prototype holding the
// accessor properties, method trampolines, and dispose. Registering the same
// class twice is an error.
func (b *Binder) Register(d *descriptor.TypeDescriptor, namespace *goja.Object) error {
	if _, dup := b.classes[d.Type]; dup {
		return fmt.Errorf("jsbind: class %s is already registered", d.Name)
	}

	for _, nested := range d.NestedStructs() {
		if _, ok := b.classes[nested]; !ok {
			log.Warningf("class %s: nested type %s is not registered; its values degrade to plain objects", d.Name, nested)
		}
	}

	cls := &class{desc: d}
	if err := b.buildPrototype(cls); err != nil {
		return err
	}

	ctorVal := b.runtime.ToValue(func(call goja.ConstructorCall) *goja.Object {
		w, err := bind.Construct[goja.Value](b.conv, d, call.Arguments)
		if err != nil {
			b.throw(err)
		}
		b.bindInstance(call.This, w)
		return nil // keep call.This
	})
	ctor, ok := ctorVal.(*goja.Object)
	if !ok {
		return fmt.Errorf("jsbind: constructor for %s is not an object", d.Name)
	}
	if err := ctor.Set("prototype", cls.proto); err != nil {
		return err
	}
	if err := cls.proto.Set("constructor", ctor); err != nil {
		return err
	}

	for i := range d.Statics {
		md := &d.Statics[i]
		if err := ctor.Set(md.Name, b.staticFn(md)); err != nil {
			return err
		}
	}
	for i := range d.Consts {
		cd := &d.Consts[i]
		jv, err := b.conv.ToDynamic(cd.Value, cd.Category)
		if err != nil {
			return err
		}
		if err := ctor.Set(cd.Name, jv); err != nil {
			return err
		}
	}

	cls.ctor = ctor
	if err := namespace.Set(d.Name, ctor); err != nil {
		return err
	}
	b.classes[d.Type] = cls
	log.Infof("registered class %s (%d fields, %d methods)", d.Name, len(d.Fields), len(d.Methods))
	return nil
}

// buildPrototype defines the per-class behavior once; every instance
// resolves its wrapper from the hidden symbol slot on `this`.
func (b *Binder) buildPrototype(cls *class) error {
	rt := b.runtime
	proto := rt.NewObject()
	desc := cls.desc

	for i := range desc.Fields {
		fd := &desc.Fields[i]
		getter := rt.ToValue(func(call goja.FunctionCall) goja.Value {
			w := b.thisWrapper(call.This, cls)
			fv, err := w.Field(fd)
			if err != nil {
				b.throw(err)
			}
			jv, err := b.conv.ToDynamic(fv, fd.Category)
			if err != nil {
				b.throw(err)
			}
			return jv
		})
		setter := rt.ToValue(func(call goja.FunctionCall) goja.Value {
			w := b.thisWrapper(call.This, cls)
			fv, err := w.Field(fd)
			if err != nil {
				b.throw(err)
			}
			nv, err := b.conv.FromDynamic(call.Argument(0), fd.Category)
			if err != nil {
				b.throw(err)
			}
			fv.Set(nv)
			return goja.Undefined()
		})
		if err := proto.DefineAccessorProperty(fd.Name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return err
		}
	}

	for i := range desc.Methods {
		md := &desc.Methods[i]
		if err := proto.Set(md.Name, b.methodFn(cls, md)); err != nil {
			return err
		}
	}

	if err := proto.Set("dispose", func(call goja.FunctionCall) goja.Value {
		w := b.thisWrapper(call.This, cls)
		if err := w.Release(); err != nil {
			b.throw(err)
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	cls.proto = proto
	return nil
}

// Owned wraps a native instance (a pointer to a registered struct type) into
// a JS value, transferring destruction responsibility to the wrapper.
func (b *Binder) Owned(native any) (goja.Value, error) {
	return b.adopt(native, bind.Owned)
}

// Borrowed wraps a native instance without taking ownership.
func (b *Binder) Borrowed(native any) (goja.Value, error) {
	return b.adopt(native, bind.Borrowed)
}

func (b *Binder) adopt(native any, o bind.Ownership) (goja.Value, error) {
	ptr := reflect.ValueOf(native)
	if ptr.Kind() != reflect.Pointer {
		return goja.Undefined(), fmt.Errorf("jsbind: need a pointer to a registered struct, got %T", native)
	}
	cls := b.classes[ptr.Type().Elem()]
	if cls == nil {
		return goja.Undefined(), fmt.Errorf("jsbind: type %s is not registered", ptr.Type().Elem())
	}
	if o == bind.Owned {
		return b.wrap(bind.Own(cls.desc, ptr)), nil
	}
	return b.wrap(bind.Borrow(cls.desc, ptr)), nil
}

// wrap produces a fresh runtime-visible object for a wrapper, carrying the
// class prototype.
func (b *Binder) wrap(w *bind.Wrapper) *goja.Object {
	obj := b.runtime.NewObject()
	if cls := b.classes[w.Descriptor().Type]; cls != nil {
		_ = obj.SetPrototype(cls.proto)
	}
	b.bindInstance(obj, w)
	return obj
}

// bindInstance ties a wrapper to its runtime-visible object. goja exposes no
// finalization hook, so release-on-collection rides on a Go finalizer of the
// wrapper itself; explicit dispose() releases earlier.
func (b *Binder) bindInstance(obj *goja.Object, w *bind.Wrapper) {
	_ = obj.SetSymbol(b.sym, b.runtime.ToValue(w))
	runtime.SetFinalizer(w, func(w *bind.Wrapper) {
		// Release is atomic; an explicit earlier dispose makes this a no-op.
		_ = w.Release()
	})
}

// thisWrapper resolves the wrapper behind a prototype call's receiver,
// throwing InvalidObjectError when `this` is not a bound instance of the
// class.
func (b *Binder) thisWrapper(this goja.Value, cls *class) *bind.Wrapper {
	obj, ok := this.(*goja.Object)
	if !ok {
		b.throw(bind.InvalidObjectErr(cls.desc.Name))
	}
	w := b.unwrap(obj)
	if w == nil || w.Descriptor().Type != cls.desc.Type {
		b.throw(bind.InvalidObjectErr(cls.desc.Name))
	}
	return w
}

func (b *Binder) methodFn(cls *class, md *descriptor.MethodDescriptor) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		w := b.thisWrapper(call.This, cls)
		res, has, err := bind.CallMethod[goja.Value](b.conv, w, md, call.Arguments)
		if err != nil {
			b.throw(err)
		}
		if !has {
			return goja.Undefined()
		}
		return res
	}
}

func (b *Binder) staticFn(md *descriptor.MethodDescriptor) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		res, has, err := bind.CallStatic[goja.Value](b.conv, md, call.Arguments)
		if err != nil {
			b.throw(err)
		}
		if !has {
			return goja.Undefined()
		}
		return res
	}
}

// unwrap extracts the wrapper carried by a bound object, or nil.
func (b *Binder) unwrap(obj *goja.Object) *bind.Wrapper {
	s := obj.GetSymbol(b.sym)
	if s == nil {
		return nil
	}
	w, _ := s.Export().(*bind.Wrapper)
	return w
}

// throw converts a core error into a thrown JS error. Core errors carry
// their kind tag as a machine-checkable `kind` property.
func (b *Binder) throw(err error) {
	obj := b.runtime.NewGoError(err)
	if be, ok := err.(*bind.Error); ok {
		_ = obj.Set("kind", be.Kind.String())
	}
	panic(obj)
}
