package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the mirrorbind.toml binding manifest: which struct types to
// scan, what to expose them as, and where the generated registration file
// goes.
type Config struct {
	Package string  `toml:"package"` // package name of the generated file
	Output  string  `toml:"output"`
	Cache   string  `toml:"cache"`
	Classes []Class `toml:"class"`
}

// Class is one [[class]] entry.
type Class struct {
	Package string   `toml:"package"` // import path to scan
	Type    string   `toml:"type"`    // Go type name
	Expose  string   `toml:"expose"`  // exposed name (default: the type name)
	Exclude []string `toml:"exclude"` // Go method names hidden from the binding
}

// LoadConfig parses a mirrorbind.toml file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if c.Package == "" {
		c.Package = "main"
	}
	if c.Output == "" {
		c.Output = "bindings_gen.go"
	}
	if c.Cache == "" {
		c.Cache = ".bindgen.cache"
	}
	if len(c.Classes) == 0 {
		return nil, fmt.Errorf("%s: no [[class]] entries", path)
	}
	for i, cl := range c.Classes {
		if cl.Package == "" || cl.Type == "" {
			return nil, fmt.Errorf("%s: [[class]] %d needs package and type", path, i)
		}
	}

	return &c, nil
}
