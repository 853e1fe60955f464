package world

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Transfer is a set of flags describing how a component may cross a world
// boundary.
type Transfer uint8

const (
	// Copy marks a plain value that is duplicated by assignment.
	Copy Transfer = 1 << iota

	// Clone marks a component duplicated through its Cloner implementation.
	Clone

	// Move marks a component that may be removed from its entity and handed
	// to another world.
	Move

	// Key marks a comparable component usable to select entities by value.
	Key
)

// Has reports whether every flag in other is set in t.
func (t Transfer) Has(other Transfer) bool {
	return t&other == other
}

// String returns the string representation of Transfer.
func (t Transfer) String() string {
	if t == 0 {
		return "none"
	}

	var parts []string
	if t.Has(Copy) {
		parts = append(parts, "copy")
	}
	if t.Has(Clone) {
		parts = append(parts, "clone")
	}
	if t.Has(Move) {
		parts = append(parts, "move")
	}
	if t.Has(Key) {
		parts = append(parts, "key")
	}
	return strings.Join(parts, "|")
}

// Field describes one registered component.
type Field struct {
	Name     string
	Type     reflect.Type
	Transfer Transfer
}

// Schema declares which components of a world are transferable and how.
// A schema is built during setup and must not be modified once the worlds
// that share it are running.
type Schema struct {
	fields map[string]Field
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]Field)}
}

// Register declares the component type of sample with the given transfer
// flags. The flags are checked against the type: Copy requires a plain value,
// Clone requires a Cloner and Key requires a type whose values compare
// without panicking, so interface fields are rejected at any depth.
func (s *Schema) Register(sample Component, transfer Transfer) error {
	if sample == nil {
		return ErrNilComponent
	}

	name := sample.ComponentName()
	if name == "" {
		return ErrEmptyName
	}
	if _, exists := s.fields[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateField, name)
	}

	typ := reflect.TypeOf(sample)
	if transfer.Has(Copy) && !isPlain(typ) {
		return fmt.Errorf("%w: %s (%s)", ErrNotPlainValue, name, typ)
	}
	if transfer.Has(Clone) {
		if _, ok := sample.(Cloner); !ok {
			return fmt.Errorf("%w: %s (%s)", ErrNotCloner, name, typ)
		}
	}
	if transfer.Has(Key) && !isComparable(typ) {
		return fmt.Errorf("%w: %s (%s)", ErrNotComparable, name, typ)
	}

	s.fields[name] = Field{Name: name, Type: typ, Transfer: transfer}
	return nil
}

// MustRegister is like Register but panics on error. Intended for package
// level schema declarations.
func (s *Schema) MustRegister(sample Component, transfer Transfer) *Schema {
	if err := s.Register(sample, transfer); err != nil {
		panic(err)
	}
	return s
}

// Field returns the registered field for a component name.
func (s *Schema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	f, ok := s.fields[name]
	return f, ok
}

// Allows reports whether the named component carries every flag in transfer.
func (s *Schema) Allows(name string, transfer Transfer) bool {
	f, ok := s.Field(name)
	return ok && f.Transfer.Has(transfer)
}

// Fields returns all registered fields sorted by name.
func (s *Schema) Fields() []Field {
	if s == nil {
		return nil
	}

	fields := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

// check validates a stored component against the schema before it leaves the
// world.
func (s *Schema) check(c Component, transfer Transfer) (Field, error) {
	name := c.ComponentName()
	f, ok := s.Field(name)
	if !ok || !f.Transfer.Has(transfer) {
		return Field{}, fmt.Errorf("%w: %s lacks %s", ErrNotTransferable, name, transfer)
	}
	if typ := reflect.TypeOf(c); typ != f.Type {
		return Field{}, fmt.Errorf("%w: %s is %s, schema has %s", ErrTypeMismatch, name, typ, f.Type)
	}
	return f, nil
}

// isPlain reports whether values of typ can be duplicated by assignment
// without sharing memory.
func isPlain(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	case reflect.Array:
		return isPlain(typ.Elem())
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			if !isPlain(typ.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// isComparable reports whether == on values of typ can never panic.
// reflect.Type.Comparable accepts interfaces, whose dynamic values may not be.
func isComparable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Interface:
		return false
	case reflect.Array:
		return isComparable(typ.Elem())
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			if !isComparable(typ.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return typ.Comparable()
	}
}
