package scan

import (
	"fmt"
	"strings"
)

// Generate emits the registration source file for the scanned classes: a
// single RegisterScannedClasses function describing each class into a
// descriptor registry, nested classes first.
func Generate(classes []*Class, pkgName string) (string, error) {
	if pkgName == "" {
		pkgName = "main"
	}

	ordered := SortByDependency(classes)

	// One alias per distinct import path, in first-use order.
	aliases := map[string]string{}
	var imports []string
	for _, c := range ordered {
		if _, ok := aliases[c.Package]; !ok {
			aliases[c.Package] = fmt.Sprintf("pkg%d", len(imports))
			imports = append(imports, c.Package)
		}
	}

	var b strings.Builder
	b.WriteString("// Code generated by bindgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkgName)
	b.WriteString("import (\n")
	b.WriteString("\t\"github.com/chazu/mirrorbind/descriptor\"\n\n")
	for _, path := range imports {
		fmt.Fprintf(&b, "\t%s %q\n", aliases[path], path)
	}
	b.WriteString(")\n\n")

	b.WriteString("// RegisterScannedClasses describes every scanned class into reg, nested\n")
	b.WriteString("// classes first.\n")
	b.WriteString("func RegisterScannedClasses(reg *descriptor.Registry) error {\n")
	for _, c := range ordered {
		opts := []string{fmt.Sprintf("descriptor.WithName(%q)", c.Expose)}
		if len(c.Exclude) > 0 {
			quoted := make([]string, len(c.Exclude))
			for i, m := range c.Exclude {
				quoted[i] = fmt.Sprintf("%q", m)
			}
			opts = append(opts, fmt.Sprintf("descriptor.WithoutMethods(%s)", strings.Join(quoted, ", ")))
		}
		fmt.Fprintf(&b, "\tif _, err := reg.Describe(%s.%s{}, %s); err != nil {\n",
			aliases[c.Package], c.Name, strings.Join(opts, ", "))
		b.WriteString("\t\treturn err\n")
		b.WriteString("\t}\n")
	}
	b.WriteString("\treturn nil\n")
	b.WriteString("}\n")

	return b.String(), nil
}
