package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound          = errors.New("registry: capability not found")
	ErrSignatureMismatch = errors.New("registry: signature mismatch")
	ErrNoDefault         = errors.New("registry: no default capability")
	ErrInvalidCapability = errors.New("registry: invalid capability")
	ErrBadArguments      = errors.New("registry: bad arguments")
)

// Registry holds capabilities by name and the default per category.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Capability
	defaults map[Category]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byName:   make(map[string]Capability),
		defaults: make(map[Category]string),
	}
}

// Register stores fn under name, replacing any capability already published
// with that name. fn must be a non-nil func.
func (r *Registry) Register(name string, category Category, fn any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCapability)
	}
	if !category.Valid() {
		return fmt.Errorf("%w: %s has unknown category %d", ErrInvalidCapability, name, int(category))
	}
	sig := SignatureOf(fn)
	if sig.IsZero() {
		return fmt.Errorf("%w: %s is %T, not a func", ErrInvalidCapability, name, fn)
	}
	capability := Capability{Name: name, Category: category, Signature: sig}
	capability.fn = reflect.ValueOf(fn)
	if capability.fn.IsNil() {
		return fmt.Errorf("%w: %s is a nil func", ErrInvalidCapability, name)
	}

	r.mu.Lock()
	r.byName[name] = capability
	r.mu.Unlock()
	return nil
}

// Resolve returns the capability named name after checking that it was
// registered with the expected signature.
func (r *Registry) Resolve(name string, expected Signature) (Capability, error) {
	r.mu.RLock()
	capability, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return Capability{}, fmt.Errorf("resolve %s: %w", name, ErrNotFound)
	}
	if !capability.Signature.Equal(expected) {
		return Capability{}, fmt.Errorf("resolve %s: %w: registered %s, requested %s",
			name, ErrSignatureMismatch, capability.Signature, expected)
	}
	return capability, nil
}

// SetDefault marks name as the default for category. The name need not be
// registered yet.
func (r *Registry) SetDefault(category Category, name string) {
	r.mu.Lock()
	r.defaults[category] = strings.TrimSpace(name)
	r.mu.Unlock()
}

// DefaultName returns the configured default for category, if any.
func (r *Registry) DefaultName(category Category) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.defaults[category]
	return name, ok && name != ""
}

// DefaultFor returns the default capability of category.
func (r *Registry) DefaultFor(category Category) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := r.defaults[category]
	if name == "" {
		return Capability{}, fmt.Errorf("default for %s: %w", category, ErrNoDefault)
	}
	capability, ok := r.byName[name]
	if !ok {
		return Capability{}, fmt.Errorf("default for %s: %w: %s is not registered", category, ErrNoDefault, name)
	}
	if capability.Category != category {
		return Capability{}, fmt.Errorf("default for %s: %w: %s belongs to %s", category, ErrNoDefault, name, capability.Category)
	}
	return capability, nil
}

// Services returns the capabilities of category sorted by name.
func (r *Registry) Services(category Category) []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Capability
	for _, capability := range r.byName {
		if capability.Category == category {
			out = append(out, capability)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// List returns every capability ordered by category, then name.
func (r *Registry) List() []Capability {
	r.mu.RLock()
	out := make([]Capability, 0, len(r.byName))
	for _, capability := range r.byName {
		out = append(out, capability)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Lookup resolves name as a callable of type F.
func Lookup[F any](r *Registry, name string) (F, error) {
	var zero F
	capability, err := r.Resolve(name, SignatureFor[F]())
	if err != nil {
		return zero, err
	}
	fn, ok := capability.Func().(F)
	if !ok {
		return zero, fmt.Errorf("resolve %s: %w", name, ErrSignatureMismatch)
	}
	return fn, nil
}

// LookupDefault resolves the default of category as a callable of type F.
func LookupDefault[F any](r *Registry, category Category) (F, error) {
	var zero F
	capability, err := r.DefaultFor(category)
	if err != nil {
		return zero, err
	}
	if !capability.Signature.Equal(SignatureFor[F]()) {
		return zero, fmt.Errorf("default for %s: %w: registered %s, requested %s",
			category, ErrSignatureMismatch, capability.Signature, SignatureFor[F]())
	}
	fn, ok := capability.Func().(F)
	if !ok {
		return zero, fmt.Errorf("default for %s: %w", category, ErrSignatureMismatch)
	}
	return fn, nil
}
