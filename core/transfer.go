package core

import (
	"github.com/najoast/worldex/world"
)

// SpawnInto returns a message that spawns components as a new entity in
// world to. Cloner components are cloned here; any other component holding
// references is handed over and must not be touched by the caller afterwards.
func SpawnInto(to WorldID, components ...world.Component) *Message {
	return NewMessage(to, Spawn{Bundle: world.Bundle(components).Detach()})
}

// InsertInto returns a message that attaches components to entity e of world
// to. Execution fails if e no longer exists there. Components are detached
// as in SpawnInto.
func InsertInto(to WorldID, e world.Entity, components ...world.Component) *Message {
	return NewMessage(to, Insert{Entity: e, Bundle: world.Bundle(components).Detach()})
}

// CloneFrom returns a message asking world holder to duplicate the named
// components of e and spawn the copies in world to. The holder keeps its
// originals.
func CloneFrom(holder WorldID, e world.Entity, to WorldID, components ...string) *Message {
	return NewMessage(holder, CloneQuery{Entity: e, Components: components, To: to})
}

// CopyFrom returns a message asking world holder to copy a single plain
// component of e into a new entity of world to.
func CopyFrom(holder WorldID, e world.Entity, component string, to WorldID) *Message {
	return NewMessage(holder, CopyComponent{Entity: e, Component: component, To: to})
}

// MoveFrom returns a message asking world holder to remove component from
// every entity keyed by key and insert it on target in world to.
func MoveFrom(holder WorldID, key world.Component, component string, target world.Entity, to WorldID) *Message {
	return NewMessage(holder, MoveKeyed{Key: key, Component: component, Target: target, To: to})
}

// ForwardVia returns a message that world via re-sends to world to.
func ForwardVia(via, to WorldID, cmd Command) *Message {
	return NewMessage(via, Forward{To: to, Command: cmd})
}

// RoundTrip returns a message asking world to to send cmd back to whoever
// sent it.
func RoundTrip(to WorldID, cmd Command) *Message {
	return NewMessage(to, Reply{Command: cmd})
}
