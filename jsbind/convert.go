package jsbind

import (
	"math"
	"reflect"
	"strconv"

	"github.com/dop251/goja"

	"github.com/chazu/mirrorbind/bind"
	"github.com/chazu/mirrorbind/descriptor"
)

// converter implements bind.Converter[goja.Value] for one Binder. goja keeps
// integral numbers as 64-bit integers, so integer round-trips are exact well
// past 32 bits.
type converter struct {
	b *Binder
}

func (c *converter) ToDynamic(v reflect.Value, cat descriptor.Category) (goja.Value, error) {
	rt := c.b.runtime
	switch cat.Kind {
	case descriptor.Bool:
		return rt.ToValue(v.Bool()), nil

	case descriptor.Int, descriptor.Enum:
		if isUnsigned(v.Kind()) {
			return rt.ToValue(v.Uint()), nil
		}
		return rt.ToValue(v.Int()), nil

	case descriptor.Float:
		return rt.ToValue(v.Float()), nil

	case descriptor.String:
		return rt.ToValue(v.String()), nil

	case descriptor.Sequence:
		items := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			ev, err := c.ToDynamic(v.Index(i), *cat.Elem)
			if err != nil {
				return goja.Undefined(), err
			}
			items[i] = ev
		}
		return rt.NewArray(items...), nil

	case descriptor.Optional:
		if v.IsNil() {
			return goja.Null(), nil
		}
		return c.ToDynamic(v.Elem(), *cat.Elem)

	case descriptor.Struct:
		return c.structToJS(v, cat)

	default:
		return goja.Undefined(), &descriptor.UnsupportedTypeError{Type: cat.Type, Reason: "unhandled category"}
	}
}

// structToJS converts a nested bindable value: a live wrapper when the class
// is registered (borrowing addressable field storage in place, copying
// unaddressable method results into a new owned wrapper), or a plain object
// field by field when it is not, which loses identity.
func (c *converter) structToJS(v reflect.Value, cat descriptor.Category) (goja.Value, error) {
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
		return goja.Undefined(), err
	}
	obj := c.b.runtime.NewObject()
	for i := range desc.Fields {
		fd := &desc.Fields[i]
		fv, err := c.ToDynamic(v.FieldByIndex(fd.Index), fd.Category)
		if err != nil {
			return goja.Undefined(), err
		}
		if err := obj.Set(fd.Name, fv); err != nil {
			return goja.Undefined(), err
		}
	}
	return obj, nil
}

func (c *converter) FromDynamic(jv goja.Value, cat descriptor.Category) (reflect.Value, error) {
	switch cat.Kind {
	case descriptor.Bool:
		if _, ok := jv.Export().(bool); !ok {
			return reflect.Value{}, bind.ValueError(cat, jsTypeName(jv))
		}
		return reflect.ValueOf(jv.ToBoolean()).Convert(cat.Type), nil

	case descriptor.Int, descriptor.Enum:
		return intFromJS(jv, cat)

	case descriptor.Float:
		n, ok := numberOf(jv)
		if !ok {
			return reflect.Value{}, bind.ValueError(cat, jsTypeName(jv))
		}
		out := reflect.New(cat.Type).Elem()
		out.SetFloat(n)
		return out, nil

	case descriptor.String:
		s, ok := jv.Export().(string)
		if !ok {
			return reflect.Value{}, bind.ValueError(cat, jsTypeName(jv))
		}
		out := reflect.New(cat.Type).Elem()
		out.SetString(s)
		return out, nil

	case descriptor.Sequence:
		obj, ok := jv.(*goja.Object)
		if !ok || obj.ClassName() != "Array" {
			return reflect.Value{}, bind.ValueError(cat, jsTypeName(jv))
		}
		n := int(prop(obj, "length").ToInteger())
		out := reflect.MakeSlice(cat.Type, n, n)
		for i := 0; i < n; i++ {
			ev, err := c.FromDynamic(prop(obj, strconv.Itoa(i)), *cat.Elem)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case descriptor.Optional:
		if goja.IsNull(jv) || goja.IsUndefined(jv) {
			return reflect.Zero(cat.Type), nil
		}
		ev, err := c.FromDynamic(jv, *cat.Elem)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(cat.Elem.Type)
		ptr.Elem().Set(ev)
		return ptr, nil

	case descriptor.Struct:
		return c.structFromJS(jv, cat)

	default:
		return reflect.Value{}, &descriptor.UnsupportedTypeError{Type: cat.Type, Reason: "unhandled category"}
	}
}

// structFromJS accepts either a live wrapper of the right class (copied by
// value into the destination) or a plain object converted field by field.
func (c *converter) structFromJS(jv goja.Value, cat descriptor.Category) (reflect.Value, error) {
	obj, ok := jv.(*goja.Object)
	if !ok {
		return reflect.Value{}, bind.ValueError(cat, jsTypeName(jv))
	}

	if w := c.b.unwrap(obj); w != nil {
		if w.Descriptor().Type != cat.Type {
			return reflect.Value{}, bind.ValueError(cat, jsTypeName(jv))
		}
		ptr, err := w.Native()
		if err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}

	desc, err := c.b.registry.DescriptorFor(cat.Type)
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(cat.Type).Elem()
	for i := range desc.Fields {
		fd := &desc.Fields[i]
		fv, err := c.FromDynamic(prop(obj, fd.Name), fd.Category)
		if err != nil {
			return reflect.Value{}, err
		}
		out.FieldByIndex(fd.Index).Set(fv)
	}
	return out, nil
}

// intFromJS rebuilds an integer value, keeping int64-backed numbers exact
// and rejecting non-integral, non-finite, and out-of-range ones.
func intFromJS(jv goja.Value, cat descriptor.Category) (reflect.Value, error) {
	out := reflect.New(cat.Type).Elem()
	unsigned := isUnsigned(cat.Type.Kind())

	switch n := jv.Export().(type) {
	case int64:
		if unsigned {
			if n < 0 || out.OverflowUint(uint64(n)) {
				return reflect.Value{}, bind.ValueError(cat, "out-of-range number")
			}
			out.SetUint(uint64(n))
		} else {
			if out.OverflowInt(n) {
				return reflect.Value{}, bind.ValueError(cat, "out-of-range number")
			}
			out.SetInt(n)
		}
		return out, nil

	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return reflect.Value{}, bind.ValueError(cat, jsTypeName(jv))
		}
		if unsigned {
			if n < 0 || n >= math.Ldexp(1, 64) || out.OverflowUint(uint64(n)) {
				return reflect.Value{}, bind.ValueError(cat, "out-of-range number")
			}
			out.SetUint(uint64(n))
		} else {
			if n < math.Ldexp(-1, 63) || n >= math.Ldexp(1, 63) || out.OverflowInt(int64(n)) {
				return reflect.Value{}, bind.ValueError(cat, "out-of-range number")
			}
			out.SetInt(int64(n))
		}
		return out, nil

	default:
		return reflect.Value{}, bind.ValueError(cat, jsTypeName(jv))
	}
}

// numberOf extracts a JS number without coercing other types.
func numberOf(jv goja.Value) (float64, bool) {
	switch n := jv.Export().(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func prop(obj *goja.Object, name string) goja.Value {
	v := obj.Get(name)
	if v == nil {
		return goja.Undefined()
	}
	return v
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func jsTypeName(jv goja.Value) string {
	if goja.IsNull(jv) {
		return "null"
	}
	if goja.IsUndefined(jv) {
		return "undefined"
	}
	if obj, ok := jv.(*goja.Object); ok {
		return obj.ClassName()
	}
	t := jv.ExportType()
	if t == nil {
		return "unknown"
	}
	return t.String()
}
