// Package world provides the entity store owned by a single exchange worker.
//
// A World is not safe for concurrent use. Each world belongs to exactly one
// goroutine; other worlds reach it only through messages executed by that
// goroutine. Data leaving a world is duplicated or removed according to the
// world's Schema, never shared by reference.
package world

import (
	"fmt"
	"sort"
)

// Entity is an opaque identity within one world. The zero Entity is never
// allocated.
type Entity uint64

// String returns a string representation of the entity.
func (e Entity) String() string {
	return fmt.Sprintf("entity(%d)", e)
}

// Component is a value attached to an entity. Each entity holds at most one
// component per name.
type Component interface {
	ComponentName() string
}

// Cloner is implemented by components that own references (slices, maps,
// pointers) and must be deep-copied before leaving a world.
type Cloner interface {
	Component
	CloneComponent() Component
}

// Bundle is a fixed set of components attached together.
type Bundle []Component

// Names returns the component names in the bundle.
func (b Bundle) Names() []string {
	names := make([]string, 0, len(b))
	for _, c := range b {
		if c != nil {
			names = append(names, c.ComponentName())
		}
	}
	return names
}

// Detach returns a copy of the bundle in which every Cloner is replaced by
// its clone, so the result shares no memory with the caller's components.
func (b Bundle) Detach() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for i, c := range b {
		if cl, ok := c.(Cloner); ok {
			c = cl.CloneComponent()
		}
		out[i] = c
	}
	return out
}

// World holds entities and their components.
type World struct {
	name     string
	schema   *Schema
	next     Entity
	entities map[Entity]map[string]Component
}

// New creates an empty world. A nil schema allows no transfers.
func New(name string, schema *Schema) *World {
	if schema == nil {
		schema = NewSchema()
	}
	return &World{
		name:     name,
		schema:   schema,
		entities: make(map[Entity]map[string]Component),
	}
}

// Name returns the world name.
func (w *World) Name() string {
	return w.name
}

// Schema returns the transfer schema of the world.
func (w *World) Schema() *Schema {
	return w.schema
}

// Spawn creates a new entity carrying the given components.
func (w *World) Spawn(components ...Component) Entity {
	w.next++
	e := w.next

	set := make(map[string]Component, len(components))
	for _, c := range components {
		if c != nil {
			set[c.ComponentName()] = c
		}
	}
	w.entities[e] = set
	return e
}

// Insert attaches components to an existing entity, replacing components
// with the same name.
func (w *World) Insert(e Entity, components ...Component) error {
	set, ok := w.entities[e]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchEntity, e)
	}
	for _, c := range components {
		if c == nil {
			return ErrNilComponent
		}
	}
	for _, c := range components {
		set[c.ComponentName()] = c
	}
	return nil
}

// Remove detaches a component from an entity and returns it.
func (w *World) Remove(e Entity, name string) (Component, error) {
	set, ok := w.entities[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchEntity, e)
	}
	c, ok := set[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrComponentAbsent, name, e)
	}
	delete(set, name)
	return c, nil
}

// Despawn removes an entity and all its components.
func (w *World) Despawn(e Entity) error {
	if _, ok := w.entities[e]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchEntity, e)
	}
	delete(w.entities, e)
	return nil
}

// Get returns the named component of an entity.
func (w *World) Get(e Entity, name string) (Component, bool) {
	c, ok := w.entities[e][name]
	return c, ok
}

// Has reports whether the entity carries the named component.
func (w *World) Has(e Entity, name string) bool {
	_, ok := w.Get(e, name)
	return ok
}

// Contains reports whether the entity exists.
func (w *World) Contains(e Entity) bool {
	_, ok := w.entities[e]
	return ok
}

// Len returns the number of entities.
func (w *World) Len() int {
	return len(w.entities)
}

// Entities returns all entities in allocation order.
func (w *World) Entities() []Entity {
	return w.Query()
}

// Query returns, in allocation order, the entities carrying every named
// component.
func (w *World) Query(names ...string) []Entity {
	var result []Entity
	for e, set := range w.entities {
		if hasAll(set, names) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Components returns the components of an entity sorted by name.
func (w *World) Components(e Entity) Bundle {
	set := w.entities[e]
	b := make(Bundle, 0, len(set))
	for _, c := range set {
		b = append(b, c)
	}
	sort.Slice(b, func(i, j int) bool { return b[i].ComponentName() < b[j].ComponentName() })
	return b
}

// Duplicate returns independent copies of the named components of an entity.
// Each component must be registered as Copy or Clone. The entity is left
// untouched.
func (w *World) Duplicate(e Entity, names ...string) (Bundle, error) {
	set, ok := w.entities[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchEntity, e)
	}

	b := make(Bundle, 0, len(names))
	for _, name := range names {
		c, ok := set[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s", ErrComponentAbsent, name, e)
		}
		dup, err := w.duplicate(c)
		if err != nil {
			return nil, err
		}
		b = append(b, dup)
	}
	return b, nil
}

// CopyOut returns a copy of a component registered as Copy.
func (w *World) CopyOut(e Entity, name string) (Component, error) {
	set, ok := w.entities[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchEntity, e)
	}
	c, ok := set[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrComponentAbsent, name, e)
	}
	if _, err := w.schema.check(c, Copy); err != nil {
		return nil, err
	}
	return c, nil
}

// Take removes a component registered as Move and returns it.
func (w *World) Take(e Entity, name string) (Component, error) {
	c, ok := w.Get(e, name)
	if !ok {
		if !w.Contains(e) {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchEntity, e)
		}
		return nil, fmt.Errorf("%w: %s on %s", ErrComponentAbsent, name, e)
	}
	if _, err := w.schema.check(c, Move); err != nil {
		return nil, err
	}
	return w.Remove(e, name)
}

// TakeAll removes the named Move component from every given entity. All
// entities are checked before anything is removed, so either every value is
// taken or none is.
func (w *World) TakeAll(entities []Entity, name string) ([]Component, error) {
	for _, e := range entities {
		c, ok := w.Get(e, name)
		if !ok {
			if !w.Contains(e) {
				return nil, fmt.Errorf("%w: %s", ErrNoSuchEntity, e)
			}
			return nil, fmt.Errorf("%w: %s on %s", ErrComponentAbsent, name, e)
		}
		if _, err := w.schema.check(c, Move); err != nil {
			return nil, err
		}
	}

	values := make([]Component, 0, len(entities))
	for _, e := range entities {
		set := w.entities[e]
		values = append(values, set[name])
		delete(set, name)
	}
	return values, nil
}

// Match returns, in allocation order, the entities whose key component equals
// key and that carry every component in with. The key component must be
// registered as Key.
func (w *World) Match(key Component, with ...string) ([]Entity, error) {
	if key == nil {
		return nil, ErrNilComponent
	}
	name := key.ComponentName()
	if _, err := w.schema.check(key, Key); err != nil {
		return nil, err
	}

	var result []Entity
	for _, e := range w.Query(append([]string{name}, with...)...) {
		if w.entities[e][name] == key {
			result = append(result, e)
		}
	}
	return result, nil
}

func (w *World) duplicate(c Component) (Component, error) {
	name := c.ComponentName()
	f, ok := w.schema.Field(name)
	switch {
	case ok && f.Transfer.Has(Clone):
		if _, err := w.schema.check(c, Clone); err != nil {
			return nil, err
		}
		return c.(Cloner).CloneComponent(), nil
	case ok && f.Transfer.Has(Copy):
		if _, err := w.schema.check(c, Copy); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %s is neither copy nor clone", ErrNotTransferable, name)
	}
}

func hasAll(set map[string]Component, names []string) bool {
	for _, name := range names {
		if _, ok := set[name]; !ok {
			return false
		}
	}
	return true
}
