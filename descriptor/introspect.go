package descriptor

import (
	"reflect"
)

// Option adjusts how Describe builds a descriptor.
type Option func(*config)

type staticEntry struct {
	name string
	fn   any
}

type constEntry struct {
	name  string
	value any
}

type config struct {
	name        string
	skipMethods map[string]bool
	ctor        any
	statics     []staticEntry
	consts      []constEntry
	fieldsOnly  bool // record-fallback descriptors convert fields only
}

// WithName overrides the exposed class name (default: the Go type name).
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithConstructor registers a parameterized constructor. fn must be a func
// returning *T, optionally with a trailing error.
func WithConstructor(fn any) Option {
	return func(c *config) { c.ctor = fn }
}

// WithStatic exposes fn as a class-level method under the given name. Go has
// no static methods, so these are supplied explicitly.
func WithStatic(name string, fn any) Option {
	return func(c *config) { c.statics = append(c.statics, staticEntry{name, fn}) }
}

// WithConst exports a named constant alongside the class. The value must be
// of a primitive category (boolean, integer, float, enum, string).
func WithConst(name string, value any) Option {
	return func(c *config) { c.consts = append(c.consts, constEntry{name, value}) }
}

// WithoutMethods hides the named Go methods from every runtime. Use this to
// opt out methods whose signatures are not bindable.
func WithoutMethods(names ...string) Option {
	return func(c *config) {
		if c.skipMethods == nil {
			c.skipMethods = map[string]bool{}
		}
		for _, n := range names {
			c.skipMethods[n] = true
		}
	}
}

// describeType builds a descriptor for the given struct type. Any member
// whose type has no category mapping fails the whole class with an
// *UnsupportedTypeError.
func describeType(t reflect.Type, cfg config) (*TypeDescriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, &UnsupportedTypeError{Type: t, Reason: "only struct types are bindable"}
	}

	d := &TypeDescriptor{Name: cfg.name, Type: t}
	if d.Name == "" {
		d.Name = t.Name()
	}

	names := map[string]string{} // exposed name -> Go member, for uniqueness

	claim := func(exposed, member string) error {
		if prev, taken := names[exposed]; taken {
			return &UnsupportedTypeError{
				Type:   t,
				Member: member,
				Reason: "exposed name " + exposed + " already used by " + prev,
			}
		}
		names[exposed] = member
		return nil
	}

	// Fields, in declaration order. `bind:"-"` opts a field out; any other
	// tag value overrides the exposed name.
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" || f.Anonymous {
			continue
		}
		exposed := ExposedName(f.Name)
		if tag, ok := f.Tag.Lookup("bind"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				exposed = tag
			}
		}
		cat, err := CategoryOf(f.Type)
		if err != nil {
			return nil, memberErr(err, f.Name)
		}
		if err := claim(exposed, f.Name); err != nil {
			return nil, err
		}
		d.Fields = append(d.Fields, FieldDescriptor{
			Name:     exposed,
			GoName:   f.Name,
			Index:    f.Index,
			Category: cat,
		})
	}

	// Pointer-receiver methods, promoted ones included. Dispose is reserved
	// for the lifetime hook and always hidden; the backends expose it as
	// dispose(). Record-fallback descriptors skip methods entirely: the
	// generic-record conversion only ever touches fields.
	if !cfg.fieldsOnly {
		pt := reflect.PointerTo(t)
		for i := 0; i < pt.NumMethod(); i++ {
			m := pt.Method(i)
			if m.Name == "Dispose" || cfg.skipMethods[m.Name] {
				continue
			}
			md, err := methodDescriptor(m.Name, m.Func, true)
			if err != nil {
				return nil, memberErr(err, m.Name)
			}
			if err := claim(md.Name, m.Name); err != nil {
				return nil, err
			}
			d.Methods = append(d.Methods, *md)
		}
	}

	for _, s := range cfg.statics {
		fn := reflect.ValueOf(s.fn)
		if fn.Kind() != reflect.Func {
			return nil, &UnsupportedTypeError{Type: reflect.TypeOf(s.fn), Member: s.name, Reason: "static must be a func"}
		}
		md, err := methodDescriptor(s.name, fn, false)
		if err != nil {
			return nil, memberErr(err, s.name)
		}
		md.Name = s.name
		md.Static = true
		if err := claim(md.Name, s.name); err != nil {
			return nil, err
		}
		d.Statics = append(d.Statics, *md)
	}

	if cfg.ctor != nil {
		ctor, err := ctorDescriptor(t, cfg.ctor)
		if err != nil {
			return nil, err
		}
		d.Ctor = ctor
	}

	for _, ce := range cfg.consts {
		v := reflect.ValueOf(ce.value)
		cat, err := CategoryOf(v.Type())
		if err != nil {
			return nil, memberErr(err, ce.name)
		}
		switch cat.Kind {
		case Bool, Int, Float, Enum, String:
		default:
			return nil, &UnsupportedTypeError{Type: v.Type(), Member: ce.name, Reason: "constants must be of a primitive category"}
		}
		if err := claim(ce.name, ce.name); err != nil {
			return nil, err
		}
		d.Consts = append(d.Consts, ConstDescriptor{Name: ce.name, Category: cat, Value: v})
	}

	return d, nil
}

// methodDescriptor classifies a method or static function signature. For
// instance methods fn's first parameter is the pointer receiver, which is
// not part of the exposed parameter list.
func methodDescriptor(goName string, fn reflect.Value, instance bool) (*MethodDescriptor, error) {
	sig := fn.Type()

	md := &MethodDescriptor{
		Name:   ExposedName(goName),
		GoName: goName,
		Func:   fn,
	}

	start := 0
	if instance {
		start = 1
	}
	if sig.IsVariadic() {
		return nil, &UnsupportedTypeError{Type: sig, Reason: "variadic signatures are not bindable"}
	}
	for i := start; i < sig.NumIn(); i++ {
		cat, err := CategoryOf(sig.In(i))
		if err != nil {
			return nil, err
		}
		md.Params = append(md.Params, cat)
	}

	switch sig.NumOut() {
	case 0:
	case 1:
		if isErrorType(sig.Out(0)) {
			md.ReturnsErr = true
		} else {
			cat, err := CategoryOf(sig.Out(0))
			if err != nil {
				return nil, err
			}
			md.Return = &cat
		}
	case 2:
		if !isErrorType(sig.Out(1)) {
			return nil, &UnsupportedTypeError{Type: sig, Reason: "second return value must be error"}
		}
		cat, err := CategoryOf(sig.Out(0))
		if err != nil {
			return nil, err
		}
		md.Return = &cat
		md.ReturnsErr = true
	default:
		return nil, &UnsupportedTypeError{Type: sig, Reason: "too many return values"}
	}

	return md, nil
}

// ctorDescriptor validates a registered constructor func: parameters must be
// bindable and it must return *T, optionally with a trailing error.
func ctorDescriptor(t reflect.Type, fn any) (*CtorDescriptor, error) {
	v := reflect.ValueOf(fn)
	sig := v.Type()
	if v.Kind() != reflect.Func || sig.IsVariadic() {
		return nil, &UnsupportedTypeError{Type: reflect.TypeOf(fn), Reason: "constructor must be a non-variadic func"}
	}

	cd := &CtorDescriptor{Func: v}
	for i := 0; i < sig.NumIn(); i++ {
		cat, err := CategoryOf(sig.In(i))
		if err != nil {
			return nil, memberErr(err, "constructor")
		}
		cd.Params = append(cd.Params, cat)
	}

	want := reflect.PointerTo(t)
	switch sig.NumOut() {
	case 1:
		if sig.Out(0) != want {
			return nil, &UnsupportedTypeError{Type: sig, Member: "constructor", Reason: "must return *" + t.Name()}
		}
	case 2:
		if sig.Out(0) != want || !isErrorType(sig.Out(1)) {
			return nil, &UnsupportedTypeError{Type: sig, Member: "constructor", Reason: "must return (*" + t.Name() + ", error)"}
		}
		cd.ReturnsErr = true
	default:
		return nil, &UnsupportedTypeError{Type: sig, Member: "constructor", Reason: "must return *" + t.Name()}
	}

	return cd, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func isErrorType(t reflect.Type) bool {
	return t == errorType
}

func memberErr(err error, member string) error {
	if ute, ok := err.(*UnsupportedTypeError); ok && ute.Member == "" {
		ute.Member = member
	}
	return err
}
