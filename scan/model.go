// Package scan introspects Go packages at build time and models their
// bindable struct types. The bindgen driver uses these models to emit a
// descriptor-registration source file and to detect when a class definition
// changed since the last run.
package scan

import "fmt"

// Class is the scanned model of one bindable struct type.
type Class struct {
	Package string // import path
	PkgName string // short package name
	Name    string // Go type name
	Expose  string // exposed class name
	Exclude []string
	Fields  []Field
	Methods []Method
	Nested  []string // Go type names of nested struct fields, same package
}

// Field is one exported, non-opted-out struct field.
type Field struct {
	Name     string
	Exposed  string
	Category string
}

// Method is one exported pointer-receiver method.
type Method struct {
	Name       string
	Exposed    string
	Params     []string // parameter categories
	Return     string   // empty for void
	ReturnsErr bool
}

// UnsupportedError reports a scanned member whose type has no category
// mapping; the whole class is rejected before any code is generated.
type UnsupportedError struct {
	Class  string
	Member string
	Type   string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("class %s: member %s has unsupported type %s", e.Class, e.Member, e.Type)
}
