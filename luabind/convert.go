package luabind

import (
	"math"
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/chazu/mirrorbind/bind"
	"github.com/chazu/mirrorbind/descriptor"
)

// converter implements bind.Converter[lua.LValue] for one Binder. Lua has a
// single number type (float64), so all integers travel through it; that is
// lossy beyond 2^53 and documented as such.
type converter struct {
	b *Binder
}

func (c *converter) ToDynamic(v reflect.Value, cat descriptor.Category) (lua.LValue, error) {
	switch cat.Kind {
	case descriptor.Bool:
		return lua.LBool(v.Bool()), nil

	case descriptor.Int, descriptor.Enum:
		if isUnsigned(v.Kind()) {
			return lua.LNumber(v.Uint()), nil
		}
		return lua.LNumber(v.Int()), nil

	case descriptor.Float:
		return lua.LNumber(v.Float()), nil

	case descriptor.String:
		return lua.LString(v.String()), nil

	case descriptor.Sequence:
		tbl := c.b.state.CreateTable(v.Len(), 0)
		for i := 0; i < v.Len(); i++ {
			lv, err := c.ToDynamic(v.Index(i), *cat.Elem)
			if err != nil {
				return lua.LNil, err
			}
			tbl.RawSetInt(i+1, lv)
		}
		return tbl, nil

	case descriptor.Optional:
		if v.IsNil() {
			return lua.LNil, nil
		}
		return c.ToDynamic(v.Elem(), *cat.Elem)

	case descriptor.Struct:
		return c.structToLua(v, cat)

	default:
		return lua.LNil, &descriptor.UnsupportedTypeError{Type: cat.Type, Reason: "unhandled category"}
	}
}

// structToLua converts a nested bindable value. If the class is registered
// with this binder the result is a live wrapper: addressable values (struct
// fields) are borrowed in place, so mutation through the wrapper reaches the
// owner; unaddressable values (method results) become independent owned
// copies. Unregistered classes degrade to a plain table, field by field,
// which loses identity.
func (c *converter) structToLua(v reflect.Value, cat descriptor.Category) (lua.LValue, error) {
	if cls := c.b.classes[cat.Type]; cls != nil {
		var w *bind.Wrapper
		if v.CanAddr() {
			w = bind.Borrow(cls.desc, v.Addr())
		} else {
			ptr := reflect.New(cat.Type)
			ptr.Elem().Set(v)
			w = bind.Own(cls.desc, ptr)
		}
		return c.b.wrap(w), nil
	}

	desc, err := c.b.registry.DescriptorFor(cat.Type)
	if err != nil {
		return lua.LNil, err
	}
	tbl := c.b.state.CreateTable(0, len(desc.Fields))
	for i := range desc.Fields {
		fd := &desc.Fields[i]
		lv, err := c.ToDynamic(v.FieldByIndex(fd.Index), fd.Category)
		if err != nil {
			return lua.LNil, err
		}
		tbl.RawSetString(fd.Name, lv)
	}
	return tbl, nil
}

func (c *converter) FromDynamic(lv lua.LValue, cat descriptor.Category) (reflect.Value, error) {
	switch cat.Kind {
	case descriptor.Bool:
		b, ok := lv.(lua.LBool)
		if !ok {
			return reflect.Value{}, bind.ValueError(cat, luaTypeName(lv))
		}
		return reflect.ValueOf(bool(b)).Convert(cat.Type), nil

	case descriptor.Int, descriptor.Enum:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return reflect.Value{}, bind.ValueError(cat, luaTypeName(lv))
		}
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return reflect.Value{}, bind.ValueError(cat, "non-integral number")
		}
		out := reflect.New(cat.Type).Elem()
		if isUnsigned(cat.Type.Kind()) {
			if f < 0 || f >= math.Ldexp(1, 64) || out.OverflowUint(uint64(f)) {
				return reflect.Value{}, bind.ValueError(cat, "out-of-range number")
			}
			out.SetUint(uint64(f))
		} else {
			if f < math.Ldexp(-1, 63) || f >= math.Ldexp(1, 63) || out.OverflowInt(int64(f)) {
				return reflect.Value{}, bind.ValueError(cat, "out-of-range number")
			}
			out.SetInt(int64(f))
		}
		return out, nil

	case descriptor.Float:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return reflect.Value{}, bind.ValueError(cat, luaTypeName(lv))
		}
		out := reflect.New(cat.Type).Elem()
		out.SetFloat(float64(n))
		return out, nil

	case descriptor.String:
		s, ok := lv.(lua.LString)
		if !ok {
			return reflect.Value{}, bind.ValueError(cat, luaTypeName(lv))
		}
		out := reflect.New(cat.Type).Elem()
		out.SetString(string(s))
		return out, nil

	case descriptor.Sequence:
		tbl, ok := lv.(*lua.LTable)
		if !ok {
			return reflect.Value{}, bind.ValueError(cat, luaTypeName(lv))
		}
		n := tbl.Len()
		out := reflect.MakeSlice(cat.Type, n, n)
		for i := 0; i < n; i++ {
			ev, err := c.FromDynamic(tbl.RawGetInt(i+1), *cat.Elem)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case descriptor.Optional:
		if lv == lua.LNil {
			return reflect.Zero(cat.Type), nil
		}
		ev, err := c.FromDynamic(lv, *cat.Elem)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(cat.Elem.Type)
		ptr.Elem().Set(ev)
		return ptr, nil

	case descriptor.Struct:
		return c.structFromLua(lv, cat)

	default:
		return reflect.Value{}, &descriptor.UnsupportedTypeError{Type: cat.Type, Reason: "unhandled category"}
	}
}

// structFromLua accepts either a live wrapper of the right class (copied by
// value into the destination) or a plain table converted field by field.
func (c *converter) structFromLua(lv lua.LValue, cat descriptor.Category) (reflect.Value, error) {
	if ud, ok := lv.(*lua.LUserData); ok {
		w, ok := ud.Value.(*bind.Wrapper)
		if !ok || w.Descriptor().Type != cat.Type {
			return reflect.Value{}, bind.ValueError(cat, luaTypeName(lv))
		}
		ptr, err := w.Native()
		if err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}

	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return reflect.Value{}, bind.ValueError(cat, luaTypeName(lv))
	}
	desc, err := c.b.registry.DescriptorFor(cat.Type)
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(cat.Type).Elem()
	for i := range desc.Fields {
		fd := &desc.Fields[i]
		fv, err := c.FromDynamic(tbl.RawGetString(fd.Name), fd.Category)
		if err != nil {
			return reflect.Value{}, err
		}
		out.FieldByIndex(fd.Index).Set(fv)
	}
	return out, nil
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func luaTypeName(lv lua.LValue) string {
	if ud, ok := lv.(*lua.LUserData); ok {
		if w, ok := ud.Value.(*bind.Wrapper); ok {
			return w.Descriptor().Name + " instance"
		}
	}
	return lv.Type().String()
}
