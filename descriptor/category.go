// Package descriptor builds and stores type descriptors for bindable Go
// structs. A descriptor is the single source of truth the conversion,
// dispatch, and registration layers consume: an ordered list of exposed
// fields and methods, each classified into a closed set of type categories.
package descriptor

import (
	"fmt"
	"reflect"
)

// Kind is the closed classification of a native type. It selects which
// conversion rule applies in every runtime backend.
type Kind int

const (
	Bool Kind = iota
	Int
	Float
	Enum
	String
	Sequence
	Optional
	Struct
)

// String returns the category name used in error messages.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "boolean"
	case Int:
		return "integer"
	case Float:
		return "float"
	case Enum:
		return "enum"
	case String:
		return "string"
	case Sequence:
		return "sequence"
	case Optional:
		return "optional"
	case Struct:
		return "struct"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Category classifies one native type. Sequence and Optional categories
// carry an element category; Struct categories carry the struct type so the
// registry can resolve its descriptor. Type is always the concrete Go type,
// which conversion uses to rebuild native values.
type Category struct {
	Kind Kind
	Type reflect.Type
	Elem *Category
}

// String renders the category, recursing into element categories.
func (c Category) String() string {
	switch c.Kind {
	case Sequence:
		return "sequence of " + c.Elem.String()
	case Optional:
		return "optional " + c.Elem.String()
	case Struct:
		return "struct " + c.Type.Name()
	case Enum:
		return "enum " + c.Type.Name()
	default:
		return c.Kind.String()
	}
}

// CategoryOf maps a Go type onto its category. Types outside the closed set
// (maps, channels, funcs, interfaces, unsafe pointers) yield an
// *UnsupportedTypeError. Struct types are validated transitively: every
// exposed member of a nested struct must have a category too, so an
// unbindable nested member fails Describe rather than a later conversion.
func CategoryOf(t reflect.Type) (Category, error) {
	return categoryOf(t, map[reflect.Type]bool{})
}

// categoryOf carries the set of struct types already being validated so
// self-referential types terminate.
func categoryOf(t reflect.Type, seen map[reflect.Type]bool) (Category, error) {
	switch t.Kind() {
	case reflect.Bool:
		return Category{Kind: Bool, Type: t}, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		// A defined integer type outside the universe scope is an enum; it
		// converts through its underlying integer value.
		if t.PkgPath() != "" {
			return Category{Kind: Enum, Type: t}, nil
		}
		return Category{Kind: Int, Type: t}, nil

	case reflect.Float32, reflect.Float64:
		return Category{Kind: Float, Type: t}, nil

	case reflect.String:
		return Category{Kind: String, Type: t}, nil

	case reflect.Slice:
		elem, err := categoryOf(t.Elem(), seen)
		if err != nil {
			return Category{}, err
		}
		return Category{Kind: Sequence, Type: t, Elem: &elem}, nil

	case reflect.Pointer:
		elem, err := categoryOf(t.Elem(), seen)
		if err != nil {
			return Category{}, err
		}
		if elem.Kind == Optional {
			return Category{}, &UnsupportedTypeError{Type: t, Reason: "nested pointer types are not bindable"}
		}
		return Category{Kind: Optional, Type: t, Elem: &elem}, nil

	case reflect.Struct:
		if !seen[t] {
			seen[t] = true
			for i := 0; i < t.NumField(); i++ {
				f := t.Field(i)
				if f.PkgPath != "" || f.Anonymous || f.Tag.Get("bind") == "-" {
					continue
				}
				if _, err := categoryOf(f.Type, seen); err != nil {
					return Category{}, memberErr(err, f.Name)
				}
			}
		}
		return Category{Kind: Struct, Type: t}, nil

	default:
		return Category{}, &UnsupportedTypeError{Type: t, Reason: "no conversion exists for this type"}
	}
}

// UnsupportedTypeError reports a member, parameter, or return type with no
// category mapping. It is a build-time failure: Describe rejects the whole
// class before any binding is emitted.
type UnsupportedTypeError struct {
	Type   reflect.Type
	Member string // field or method that referenced the type, when known
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("unsupported type %s in member %s: %s", e.Type, e.Member, e.Reason)
	}
	return fmt.Sprintf("unsupported type %s: %s", e.Type, e.Reason)
}
