package descriptor

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry caches descriptors for a set of bindable types. It is an explicit
// value owned by the embedding application, not hidden global state, so two
// independent runtime instances can carry independent registries.
type Registry struct {
	mu       sync.RWMutex
	byType   map[reflect.Type]*TypeDescriptor
	byName   map[string]*TypeDescriptor
	fallback map[reflect.Type]bool // introspected lazily, replaceable by Describe
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:   map[reflect.Type]*TypeDescriptor{},
		byName:   map[string]*TypeDescriptor{},
		fallback: map[reflect.Type]bool{},
	}
}

// Describe introspects the struct type of sample (a value or pointer) and
// records its descriptor. Describing the same type or exposed name twice is
// an error: descriptors are append-only.
func (r *Registry) Describe(sample any, opts ...Option) (*TypeDescriptor, error) {
	t := reflect.TypeOf(sample)
	if t == nil {
		return nil, &UnsupportedTypeError{Reason: "nil sample"}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	d, err := describeType(t, cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byType[t]; ok && !r.fallback[t] {
		return nil, fmt.Errorf("descriptor: %s already described", t)
	}
	if _, ok := r.byName[d.Name]; ok {
		return nil, fmt.Errorf("descriptor: exposed name %q already in use", d.Name)
	}
	r.byType[t] = d
	r.byName[d.Name] = d
	delete(r.fallback, t)
	return d, nil
}

// MustDescribe is Describe that panics on error. Intended for generated
// registration code, where a failure is a build bug.
func (r *Registry) MustDescribe(sample any, opts ...Option) *TypeDescriptor {
	d, err := r.Describe(sample, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Lookup returns the descriptor recorded for t, or nil.
func (r *Registry) Lookup(t reflect.Type) *TypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[t]
}

// LookupName returns the descriptor with the given exposed name, or nil.
func (r *Registry) LookupName(name string) *TypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// DescriptorFor returns the descriptor for t, lazily introspecting its
// fields if it has not been described yet. The conversion layer uses this
// for the generic-record fallback on nested structs that were never
// registered with a runtime; records carry no methods, so only the field
// contract applies here.
func (r *Registry) DescriptorFor(t reflect.Type) (*TypeDescriptor, error) {
	if d := r.Lookup(t); d != nil {
		return d, nil
	}

	d, err := describeType(t, config{fieldsOnly: true})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byType[t]; ok {
		return existing, nil
	}
	// Record fallback descriptors under the type only: the exposed name
	// stays free for an explicit Describe with options.
	r.byType[t] = d
	r.fallback[t] = true
	return d, nil
}

// Names returns the exposed names of all explicitly described classes.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}

// SortByDependency orders descriptors so that every nested struct type
// appears before the classes that embed it. Module loaders use this to
// register classes in dependency order. Cycles are broken arbitrarily.
func SortByDependency(descs []*TypeDescriptor) []*TypeDescriptor {
	byType := map[reflect.Type]*TypeDescriptor{}
	for _, d := range descs {
		byType[d.Type] = d
	}

	var out []*TypeDescriptor
	visited := map[reflect.Type]bool{}

	var visit func(d *TypeDescriptor)
	visit = func(d *TypeDescriptor) {
		if visited[d.Type] {
			return
		}
		visited[d.Type] = true
		for _, nested := range d.NestedStructs() {
			if nd, ok := byType[nested]; ok {
				visit(nd)
			}
		}
		out = append(out, d)
	}

	for _, d := range descs {
		visit(d)
	}
	return out
}
