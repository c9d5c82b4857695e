package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical encoding so cache files are deterministic.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("scan: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Cache maps exposed class names to the signature hash seen on the last
// generator run. bindgen uses it to skip regeneration when nothing changed.
type Cache struct {
	Hashes map[string]uint64 `cbor:"hashes"`
}

// LoadCache reads a cache file. A missing file yields an empty cache.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Cache{Hashes: map[string]uint64{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan: reading cache %s: %w", path, err)
	}
	var c Cache
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("scan: unmarshal cache %s: %w", path, err)
	}
	if c.Hashes == nil {
		c.Hashes = map[string]uint64{}
	}
	return &c, nil
}

// Save writes the cache atomically next to its final location.
func (c *Cache) Save(path string) error {
	data, err := cborEncMode.Marshal(c)
	if err != nil {
		return fmt.Errorf("scan: marshal cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Fresh reports whether every class matches its cached signature hash.
func (c *Cache) Fresh(classes []*Class) bool {
	for _, cm := range classes {
		if c.Hashes[cm.Expose] != cm.SignatureHash() {
			return false
		}
	}
	return true
}

// Update records the current signature hashes.
func (c *Cache) Update(classes []*Class) {
	for _, cm := range classes {
		c.Hashes[cm.Expose] = cm.SignatureHash()
	}
}
