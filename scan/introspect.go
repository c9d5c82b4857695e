package scan

import (
	"fmt"
	"go/types"
	"reflect"
	"slices"

	"golang.org/x/tools/go/packages"
)

// Package loads a Go package by import path and models the requested struct
// types. want maps Go type name to exposed name; exclude maps Go type name
// to methods hidden from the binding.
func Package(importPath string, want map[string]string, exclude map[string][]string) ([]*Class, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax,
	}

	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", importPath)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkgs[0].Errors)
	}

	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", importPath)
	}

	scope := pkg.Types.Scope()
	var out []*Class

	for _, name := range scope.Names() {
		expose, wanted := want[name]
		if !wanted {
			continue
		}
		obj := scope.Lookup(name)
		tn, ok := obj.(*types.TypeName)
		if !ok {
			return nil, fmt.Errorf("%s.%s is not a type", importPath, name)
		}
		cm, err := extractClass(tn, pkg.Types, expose, exclude[name])
		if err != nil {
			return nil, err
		}
		cm.Package = importPath
		cm.PkgName = pkg.Name
		out = append(out, cm)
	}

	for name := range want {
		if scope.Lookup(name) == nil {
			return nil, fmt.Errorf("%s: no type named %s", importPath, name)
		}
	}

	return out, nil
}

func extractClass(tn *types.TypeName, pkg *types.Package, expose string, exclude []string) (*Class, error) {
	named, ok := tn.Type().(*types.Named)
	if !ok {
		return nil, fmt.Errorf("%s is not a named type", tn.Name())
	}
	st, ok := named.Underlying().(*types.Struct)
	if !ok {
		return nil, &UnsupportedError{Class: tn.Name(), Member: tn.Name(), Type: named.Underlying().String()}
	}

	if expose == "" {
		expose = tn.Name()
	}
	cm := &Class{Name: tn.Name(), Expose: expose, Exclude: exclude}

	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Exported() || f.Embedded() {
			continue
		}
		exposed := exposedName(f.Name())
		if tag, ok := reflect.StructTag(st.Tag(i)).Lookup("bind"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				exposed = tag
			}
		}
		cat, err := categoryOf(f.Type())
		if err != nil {
			return nil, &UnsupportedError{Class: tn.Name(), Member: f.Name(), Type: f.Type().String()}
		}
		cm.Fields = append(cm.Fields, Field{Name: f.Name(), Exposed: exposed, Category: cat})
		collectNested(f.Type(), pkg, &cm.Nested)
	}

	// Pointer-receiver methods, promoted ones included, like the runtime
	// introspection sees them.
	mset := types.NewMethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		sel := mset.At(i)
		fn, ok := sel.Obj().(*types.Func)
		if !ok || !fn.Exported() || fn.Name() == "Dispose" {
			continue
		}
		if slices.Contains(exclude, fn.Name()) {
			continue
		}
		mm, err := extractMethod(fn)
		if err != nil {
			return nil, err
		}
		cm.Methods = append(cm.Methods, *mm)
	}

	return cm, nil
}

func extractMethod(fn *types.Func) (*Method, error) {
	sig := fn.Type().(*types.Signature)
	mm := &Method{Name: fn.Name(), Exposed: exposedName(fn.Name())}

	if sig.Variadic() {
		return nil, &UnsupportedError{Class: recvName(sig), Member: fn.Name(), Type: sig.String()}
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		cat, err := categoryOf(params.At(i).Type())
		if err != nil {
			return nil, &UnsupportedError{Class: recvName(sig), Member: fn.Name(), Type: params.At(i).Type().String()}
		}
		mm.Params = append(mm.Params, cat)
	}

	results := sig.Results()
	switch results.Len() {
	case 0:
	case 1:
		if isErrorType(results.At(0).Type()) {
			mm.ReturnsErr = true
			break
		}
		cat, err := categoryOf(results.At(0).Type())
		if err != nil {
			return nil, &UnsupportedError{Class: recvName(sig), Member: fn.Name(), Type: results.At(0).Type().String()}
		}
		mm.Return = cat
	case 2:
		if !isErrorType(results.At(1).Type()) {
			return nil, &UnsupportedError{Class: recvName(sig), Member: fn.Name(), Type: sig.String()}
		}
		cat, err := categoryOf(results.At(0).Type())
		if err != nil {
			return nil, &UnsupportedError{Class: recvName(sig), Member: fn.Name(), Type: results.At(0).Type().String()}
		}
		mm.Return = cat
		mm.ReturnsErr = true
	default:
		return nil, &UnsupportedError{Class: recvName(sig), Member: fn.Name(), Type: sig.String()}
	}

	return mm, nil
}

// categoryOf mirrors the runtime category mapping at the go/types level.
func categoryOf(t types.Type) (string, error) {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		info := u.Info()
		switch {
		case info&types.IsBoolean != 0:
			return "boolean", nil
		case info&types.IsInteger != 0:
			if _, named := t.(*types.Named); named {
				return "enum", nil
			}
			return "integer", nil
		case info&types.IsFloat != 0:
			return "float", nil
		case info&types.IsString != 0:
			return "string", nil
		}
		return "", fmt.Errorf("unsupported basic type %s", t)

	case *types.Slice:
		elem, err := categoryOf(u.Elem())
		if err != nil {
			return "", err
		}
		return "sequence of " + elem, nil

	case *types.Pointer:
		elem, err := categoryOf(u.Elem())
		if err != nil {
			return "", err
		}
		return "optional " + elem, nil

	case *types.Struct:
		if named, ok := t.(*types.Named); ok {
			return "struct " + named.Obj().Name(), nil
		}
		return "", fmt.Errorf("anonymous structs are not bindable")

	default:
		return "", fmt.Errorf("unsupported type %s", t)
	}
}

// collectNested records same-package named struct types reachable from a
// field type, for dependency-ordered generation.
func collectNested(t types.Type, pkg *types.Package, out *[]string) {
	switch u := t.Underlying().(type) {
	case *types.Slice:
		collectNested(u.Elem(), pkg, out)
	case *types.Pointer:
		collectNested(u.Elem(), pkg, out)
	case *types.Struct:
		named, ok := t.(*types.Named)
		if !ok || named.Obj().Pkg() != pkg {
			return
		}
		name := named.Obj().Name()
		if !slices.Contains(*out, name) {
			*out = append(*out, name)
		}
	}
}

func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	return ok && named.Obj().Name() == "error" && named.Obj().Pkg() == nil
}

func recvName(sig *types.Signature) string {
	if sig.Recv() == nil {
		return ""
	}
	return sig.Recv().Type().String()
}
