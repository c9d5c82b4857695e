package scan

import (
	"hash/fnv"
	"strings"

	"github.com/chazu/mirrorbind/descriptor"
)

func exposedName(name string) string {
	return descriptor.ExposedName(name)
}

// Signature renders a deterministic description of the class shape. Two
// scans of an unchanged class produce identical signatures, so the cache can
// skip regeneration.
func (c *Class) Signature() string {
	var b strings.Builder
	b.WriteString("class:")
	b.WriteString(c.Expose)
	b.WriteString("|members:")
	for i, f := range c.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Exposed)
		b.WriteByte(':')
		b.WriteString(f.Category)
	}
	b.WriteString("|methods:")
	for i, m := range c.Methods {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(m.Exposed)
		b.WriteByte('(')
		b.WriteString(strings.Join(m.Params, ";"))
		b.WriteByte(')')
		if m.Return != "" {
			b.WriteString("->")
			b.WriteString(m.Return)
		}
	}
	return b.String()
}

// SignatureHash is the 64-bit FNV-1a hash of the signature, the unit the
// cache stores and compares.
func (c *Class) SignatureHash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(c.Signature()))
	return h.Sum64()
}

// SortByDependency orders classes so nested struct types come before the
// classes embedding them; generated registration code then describes them in
// an order the registrars can bind directly.
func SortByDependency(classes []*Class) []*Class {
	byName := map[string]*Class{}
	for _, c := range classes {
		byName[c.Name] = c
	}

	var out []*Class
	visited := map[string]bool{}

	var visit func(c *Class)
	visit = func(c *Class) {
		if visited[c.Name] {
			return
		}
		visited[c.Name] = true
		for _, dep := range c.Nested {
			if nc, ok := byName[dep]; ok {
				visit(nc)
			}
		}
		out = append(out, c)
	}

	for _, c := range classes {
		visit(c)
	}
	return out
}
