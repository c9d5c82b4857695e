// Package luabind exposes described native classes to a Lua state
// (github.com/yuin/gopher-lua). For each registered class it wires a
// metatable with reflective property access, one dispatch trampoline per
// method, a constructor, and wrapper finalization.
package luabind

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/tliron/commonlog"
	lua "github.com/yuin/gopher-lua"

	"github.com/chazu/mirrorbind/bind"
	"github.com/chazu/mirrorbind/descriptor"
)

var log = commonlog.GetLogger("mirrorbind.lua")

// Binder binds classes from one descriptor registry into one Lua state. It
// owns the (class, runtime) registration records; a class registered with
// one Binder is invisible to every other runtime instance.
type Binder struct {
	state    *lua.LState
	registry *descriptor.Registry
	classes  map[reflect.Type]*class
	conv     *converter
}

// class is the per-(class, runtime) registration record. Created once, never
// mutated afterwards.
type class struct {
	desc *descriptor.TypeDescriptor
	meta *lua.LTable
}

// New creates a binder for the given state and registry.
func New(L *lua.LState, reg *descriptor.Registry) *Binder {
	b := &Binder{
		state:    L,
		registry: reg,
		classes:  map[reflect.Type]*class{},
	}
	b.conv = &converter{b}
	return b
}

// RegisterAll registers the given descriptors into module in dependency
// order (nested classes first) and is the entry point a module loader calls.
func (b *Binder) RegisterAll(module *lua.LTable, descs ...*descriptor.TypeDescriptor) error {
	for _, d := range descriptor.SortByDependency(descs) {
		if err := b.Register(d, module); err != nil {
			return err
		}
	}
	return nil
}

// Register wires one class into the module table: a class table holding the
// constructor (callable both as Name(...) and Name.new(...)), static methods
// and constants, plus an instance metatable with __index/__newindex
// trampolines. Registering the same class twice is an error.
func (b *Binder) Register(d *descriptor.TypeDescriptor, module *lua.LTable) error {
	if _, dup := b.classes[d.Type]; dup {
		return fmt.Errorf("luabind: class %s is already registered", d.Name)
	}

	// Property access on a nested class that is not registered yet silently
	// degrades to the plain-table fallback, so flag it loudly.
	for _, nested := range d.NestedStructs() {
		if _, ok := b.classes[nested]; !ok {
			log.Warningf("class %s: nested type %s is not registered; its values degrade to plain tables", d.Name, nested)
		}
	}

	cls := &class{desc: d}

	meta := b.state.NewTable()
	meta.RawSetString("__index", b.state.NewFunction(b.indexFn(cls)))
	meta.RawSetString("__newindex", b.state.NewFunction(b.newindexFn(cls)))
	cls.meta = meta

	classTable := b.state.NewTable()
	classTable.RawSetString("new", b.state.NewFunction(b.ctorFn(cls, 1)))
	for i := range d.Statics {
		md := &d.Statics[i]
		classTable.RawSetString(md.Name, b.state.NewFunction(b.staticFn(md)))
	}
	for i := range d.Consts {
		cd := &d.Consts[i]
		lv, err := b.conv.ToDynamic(cd.Value, cd.Category)
		if err != nil {
			return err
		}
		classTable.RawSetString(cd.Name, lv)
	}

	// Point(...) sugar: __call receives the class table as argument 1.
	callMeta := b.state.NewTable()
	callMeta.RawSetString("__call", b.state.NewFunction(b.ctorFn(cls, 2)))
	b.state.SetMetatable(classTable, callMeta)

	module.RawSetString(d.Name, classTable)
	b.classes[d.Type] = cls
	log.Infof("registered class %s (%d fields, %d methods)", d.Name, len(d.Fields), len(d.Methods))
	return nil
}

// Owned wraps a native instance (a pointer to a registered struct type) into
// a Lua value, transferring destruction responsibility to the wrapper.
func (b *Binder) Owned(native any) (lua.LValue, error) {
	return b.adopt(native, bind.Owned)
}

// Borrowed wraps a native instance without taking ownership; releasing the
// Lua-side handle never destroys it.
func (b *Binder) Borrowed(native any) (lua.LValue, error) {
	return b.adopt(native, bind.Borrowed)
}

func (b *Binder) adopt(native any, o bind.Ownership) (lua.LValue, error) {
	ptr := reflect.ValueOf(native)
	if ptr.Kind() != reflect.Pointer {
		return lua.LNil, fmt.Errorf("luabind: need a pointer to a registered struct, got %T", native)
	}
	cls := b.classes[ptr.Type().Elem()]
	if cls == nil {
		return lua.LNil, fmt.Errorf("luabind: type %s is not registered", ptr.Type().Elem())
	}
	if o == bind.Owned {
		return b.wrap(bind.Own(cls.desc, ptr)), nil
	}
	return b.wrap(bind.Borrow(cls.desc, ptr)), nil
}

// wrap produces the runtime-visible handle for a wrapper. gopher-lua has no
// __gc for userdata, so release on collection rides on the Go finalizer of
// the userdata itself; explicit dispose() releases earlier.
func (b *Binder) wrap(w *bind.Wrapper) *lua.LUserData {
	ud := b.state.NewUserData()
	ud.Value = w
	ud.Metatable = b.classes[w.Descriptor().Type].meta
	runtime.SetFinalizer(ud, func(*lua.LUserData) {
		// Release is atomic; an explicit earlier dispose makes this a no-op.
		_ = w.Release()
	})
	return ud
}

func (b *Binder) ctorFn(cls *class, first int) lua.LGFunction {
	return func(L *lua.LState) int {
		args := stackArgs(L, first)
		w, err := bind.Construct[lua.LValue](b.conv, cls.desc, args)
		if err != nil {
			raise(L, err)
			return 0
		}
		L.Push(b.wrap(w))
		return 1
	}
}

func (b *Binder) staticFn(md *descriptor.MethodDescriptor) lua.LGFunction {
	return func(L *lua.LState) int {
		args := stackArgs(L, 1)
		res, has, err := bind.CallStatic[lua.LValue](b.conv, md, args)
		if err != nil {
			raise(L, err)
			return 0
		}
		if !has {
			return 0
		}
		L.Push(res)
		return 1
	}
}

// indexFn resolves property reads and method lookups. Field values convert
// on every read; methods return a fresh trampoline closure.
func (b *Binder) indexFn(cls *class) lua.LGFunction {
	return func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		key := L.CheckString(2)
		w, ok := ud.Value.(*bind.Wrapper)
		if !ok {
			raise(L, bind.InvalidObjectErr(cls.desc.Name))
			return 0
		}

		if key == "dispose" {
			L.Push(L.NewFunction(disposeFn))
			return 1
		}

		if fd := cls.desc.Field(key); fd != nil {
			fv, err := w.Field(fd)
			if err != nil {
				raise(L, err)
				return 0
			}
			lv, err := b.conv.ToDynamic(fv, fd.Category)
			if err != nil {
				raise(L, err)
				return 0
			}
			L.Push(lv)
			return 1
		}

		if md := cls.desc.Method(key); md != nil {
			L.Push(L.NewFunction(b.methodFn(md)))
			return 1
		}

		L.Push(lua.LNil)
		return 1
	}
}

func (b *Binder) newindexFn(cls *class) lua.LGFunction {
	return func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		key := L.CheckString(2)
		value := L.Get(3)
		w, ok := ud.Value.(*bind.Wrapper)
		if !ok {
			raise(L, bind.InvalidObjectErr(cls.desc.Name))
			return 0
		}

		fd := cls.desc.Field(key)
		if fd == nil {
			L.RaiseError("unknown field: %s", key)
			return 0
		}
		fv, err := w.Field(fd)
		if err != nil {
			raise(L, err)
			return 0
		}
		nv, err := b.conv.FromDynamic(value, fd.Category)
		if err != nil {
			raise(L, err)
			return 0
		}
		fv.Set(nv)
		return 0
	}
}

func (b *Binder) methodFn(md *descriptor.MethodDescriptor) lua.LGFunction {
	return func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		w, ok := ud.Value.(*bind.Wrapper)
		if !ok {
			raise(L, bind.InvalidObjectErr(md.Name))
			return 0
		}
		args := stackArgs(L, 2)
		res, has, err := bind.CallMethod[lua.LValue](b.conv, w, md, args)
		if err != nil {
			raise(L, err)
			return 0
		}
		if !has {
			return 0
		}
		L.Push(res)
		return 1
	}
}

func disposeFn(L *lua.LState) int {
	ud := L.CheckUserData(1)
	w, ok := ud.Value.(*bind.Wrapper)
	if !ok {
		L.RaiseError("dispose: not a bound instance")
		return 0
	}
	if err := w.Release(); err != nil {
		raise(L, err)
	}
	return 0
}

func stackArgs(L *lua.LState, first int) []lua.LValue {
	top := L.GetTop()
	if top < first {
		return nil
	}
	args := make([]lua.LValue, 0, top-first+1)
	for i := first; i <= top; i++ {
		args = append(args, L.Get(i))
	}
	return args
}

// raise converts a core error into the Lua error mechanism. The kind tag
// stays machine-checkable as the message prefix.
func raise(L *lua.LState, err error) {
	L.RaiseError("%s", err)
}
