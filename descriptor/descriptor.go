package descriptor

import "reflect"

// FieldDescriptor describes one exposed data member.
type FieldDescriptor struct {
	Name     string // exposed (script-side) name
	GoName   string
	Index    []int // reflect field index chain
	Category Category
}

// MethodDescriptor describes one exposed method. For instance methods Func
// takes the pointer receiver as its first argument; for statics Func is the
// registered function itself.
type MethodDescriptor struct {
	Name       string // exposed (script-side) name
	GoName     string
	Static     bool
	Params     []Category
	Return     *Category // nil for void methods
	ReturnsErr bool      // trailing error return, mapped to an invocation failure
	Func       reflect.Value
}

// CtorDescriptor describes a registered parameterized constructor. Func must
// return *T (optionally with a trailing error).
type CtorDescriptor struct {
	Params     []Category
	ReturnsErr bool
	Func       reflect.Value
}

// ConstDescriptor is a named constant exported alongside a class.
type ConstDescriptor struct {
	Name     string
	Category Category
	Value    reflect.Value
}

// TypeDescriptor is the immutable description of one bindable struct type.
// Field and method order follows source declaration order; names are unique
// within the class.
type TypeDescriptor struct {
	Name    string       // exposed class name
	Type    reflect.Type // the struct type, never a pointer
	Fields  []FieldDescriptor
	Methods []MethodDescriptor
	Statics []MethodDescriptor
	Ctor    *CtorDescriptor // nil means zero-value construction only
	Consts  []ConstDescriptor
}

// Field returns the field with the given exposed name, or nil.
func (d *TypeDescriptor) Field(name string) *FieldDescriptor {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// Method returns the instance method with the given exposed name, or nil.
func (d *TypeDescriptor) Method(name string) *MethodDescriptor {
	for i := range d.Methods {
		if d.Methods[i].Name == name {
			return &d.Methods[i]
		}
	}
	return nil
}

// Static returns the static method with the given exposed name, or nil.
func (d *TypeDescriptor) Static(name string) *MethodDescriptor {
	for i := range d.Statics {
		if d.Statics[i].Name == name {
			return &d.Statics[i]
		}
	}
	return nil
}

// NestedStructs returns the struct types this descriptor's fields reach,
// directly or through sequences and optionals. Registrars use this to check
// dependency order.
func (d *TypeDescriptor) NestedStructs() []reflect.Type {
	var out []reflect.Type
	seen := map[reflect.Type]bool{}
	for _, f := range d.Fields {
		collectStructs(&f.Category, seen, &out)
	}
	return out
}

func collectStructs(c *Category, seen map[reflect.Type]bool, out *[]reflect.Type) {
	switch c.Kind {
	case Struct:
		if !seen[c.Type] {
			seen[c.Type] = true
			*out = append(*out, c.Type)
		}
	case Sequence, Optional:
		collectStructs(c.Elem, seen, out)
	}
}
