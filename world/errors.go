package world

import "errors"

// Entity and component access errors
var (
	ErrNoSuchEntity    = errors.New("no such entity")
	ErrComponentAbsent = errors.New("component absent")
	ErrNilComponent    = errors.New("nil component")
)

// Transfer errors
var (
	ErrNotTransferable = errors.New("component not transferable")
	ErrTypeMismatch    = errors.New("component type does not match schema")
)

// Schema registration errors
var (
	ErrDuplicateField = errors.New("component already registered in schema")
	ErrNotPlainValue  = errors.New("component is not a plain value")
	ErrNotCloner      = errors.New("component does not implement Cloner")
	ErrNotComparable  = errors.New("component is not comparable")
	ErrEmptyName      = errors.New("component name is empty")
)
