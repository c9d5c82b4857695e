package bind

import (
	"reflect"

	"github.com/chazu/mirrorbind/descriptor"
)

// Converter is the bidirectional value-conversion contract a runtime backend
// implements, parameterized over the backend's dynamic value type. ToDynamic
// must not fail for values that passed introspection; FromDynamic returns a
// typed failure when the dynamic value does not match the category.
type Converter[V any] interface {
	ToDynamic(native reflect.Value, cat descriptor.Category) (V, error)
	FromDynamic(dyn V, cat descriptor.Category) (reflect.Value, error)
}

// CallMethod runs the full trampoline for an instance method: arity check,
// left-to-right argument conversion, liveness-checked native invocation, and
// result conversion. The bool result is false for void methods.
func CallMethod[V any](conv Converter[V], w *Wrapper, m *descriptor.MethodDescriptor, args []V) (V, bool, error) {
	var zero V

	recv, err := w.Native()
	if err != nil {
		return zero, false, err
	}

	in, err := convertArgs(conv, m.Params, args, 1)
	if err != nil {
		return zero, false, err
	}
	in[0] = recv

	return finishCall(conv, m.Func, in, m.Return, m.ReturnsErr)
}

// CallStatic runs the trampoline for a static method: same algorithm, no
// receiver and no liveness check.
func CallStatic[V any](conv Converter[V], m *descriptor.MethodDescriptor, args []V) (V, bool, error) {
	var zero V

	in, err := convertArgs(conv, m.Params, args, 0)
	if err != nil {
		return zero, false, err
	}

	return finishCall(conv, m.Func, in, m.Return, m.ReturnsErr)
}

// Construct builds a new owned wrapper. Without a registered constructor the
// class is zero-value constructed and the call must carry no arguments; with
// one, the constructor runs under full trampoline semantics.
func Construct[V any](conv Converter[V], d *descriptor.TypeDescriptor, args []V) (*Wrapper, error) {
	if d.Ctor == nil {
		if len(args) != 0 {
			return nil, ArityError(0, len(args))
		}
		return Own(d, reflect.New(d.Type)), nil
	}

	in, err := convertArgs(conv, d.Ctor.Params, args, 0)
	if err != nil {
		return nil, err
	}

	out, err := invoke(d.Ctor.Func, in)
	if err != nil {
		return nil, err
	}
	if d.Ctor.ReturnsErr {
		if callErr, _ := out[len(out)-1].Interface().(error); callErr != nil {
			return nil, InvocationError(callErr)
		}
	}
	ptr := out[0]
	if ptr.IsNil() {
		return nil, InvocationError("constructor returned nil")
	}
	return Own(d, ptr), nil
}

// convertArgs enforces arity and converts each argument left to right,
// short-circuiting on the first failure. offset reserves leading slots for
// the receiver.
func convertArgs[V any](conv Converter[V], params []descriptor.Category, args []V, offset int) ([]reflect.Value, error) {
	if len(args) != len(params) {
		return nil, ArityError(len(params), len(args))
	}
	in := make([]reflect.Value, offset+len(params))
	for i, cat := range params {
		v, err := conv.FromDynamic(args[i], cat)
		if err != nil {
			return nil, ConversionError(i, cat, err)
		}
		in[offset+i] = v
	}
	return in, nil
}

// invoke calls fn, catching panics at the boundary so a native failure never
// propagates uncaught into the runtime.
func invoke(fn reflect.Value, in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = InvocationError(r)
		}
	}()
	return fn.Call(in), nil
}

func finishCall[V any](conv Converter[V], fn reflect.Value, in []reflect.Value, ret *descriptor.Category, returnsErr bool) (V, bool, error) {
	var zero V

	out, err := invoke(fn, in)
	if err != nil {
		return zero, false, err
	}
	if returnsErr {
		if callErr, _ := out[len(out)-1].Interface().(error); callErr != nil {
			return zero, false, InvocationError(callErr)
		}
	}
	if ret == nil {
		return zero, false, nil
	}

	dyn, err := conv.ToDynamic(out[0], *ret)
	if err != nil {
		return zero, false, err
	}
	return dyn, true, nil
}
