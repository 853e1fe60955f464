package core

import (
	"fmt"

	"github.com/najoast/worldex/world"
)

// Spawn creates a new entity carrying Bundle in the executing world.
type Spawn struct {
	Bundle world.Bundle
}

func (Spawn) Kind() CommandKind { return KindSpawn }
func (Spawn) isCommand()        {}

func (c Spawn) Execute(mc *MessageContext) error {
	mc.World.Spawn(c.Bundle...)
	return nil
}

// Insert attaches Bundle to an existing entity of the executing world.
type Insert struct {
	Entity world.Entity
	Bundle world.Bundle
}

func (Insert) Kind() CommandKind { return KindInsert }
func (Insert) isCommand()        {}

func (c Insert) Execute(mc *MessageContext) error {
	if err := mc.World.Insert(c.Entity, c.Bundle...); err != nil {
		return fmt.Errorf("insert %v: %w", c.Bundle.Names(), err)
	}
	return nil
}

// CloneQuery duplicates the named components of Entity, leaving the
// originals in place, and spawns the copies as a new entity in world To.
type CloneQuery struct {
	Entity     world.Entity
	Components []string
	To         WorldID
}

func (CloneQuery) Kind() CommandKind { return KindCloneQuery }
func (CloneQuery) isCommand()        {}

func (c CloneQuery) Execute(mc *MessageContext) error {
	if len(c.Components) == 0 {
		return ErrEmptyQuery
	}

	bundle, err := mc.World.Duplicate(c.Entity, c.Components...)
	if err != nil {
		return fmt.Errorf("clone %v: %w", c.Components, err)
	}
	return mc.Send(c.To, Spawn{Bundle: bundle})
}

// CopyComponent copies a single plain component of Entity and spawns it as a
// new entity in world To.
type CopyComponent struct {
	Entity    world.Entity
	Component string
	To        WorldID
}

func (CopyComponent) Kind() CommandKind { return KindCopyComponent }
func (CopyComponent) isCommand()        {}

func (c CopyComponent) Execute(mc *MessageContext) error {
	component, err := mc.World.CopyOut(c.Entity, c.Component)
	if err != nil {
		return fmt.Errorf("copy %s: %w", c.Component, err)
	}
	return mc.Send(c.To, Spawn{Bundle: world.Bundle{component}})
}

// MoveKeyed removes Component from every entity whose key component equals
// Key and sends each removed value to Target in world To. The source world
// loses the data; Target is chosen by the caller and unrelated to the source
// entities.
type MoveKeyed struct {
	Key       world.Component
	Component string
	Target    world.Entity
	To        WorldID
}

func (MoveKeyed) Kind() CommandKind { return KindMoveKeyed }
func (MoveKeyed) isCommand()        {}

func (c MoveKeyed) Execute(mc *MessageContext) error {
	ids, err := mc.World.Match(c.Key, c.Component)
	if err != nil {
		return fmt.Errorf("move %s: %w", c.Component, err)
	}

	values, err := mc.World.TakeAll(ids, c.Component)
	if err != nil {
		return fmt.Errorf("move %s: %w", c.Component, err)
	}

	for i, value := range values {
		err := mc.Send(c.To, Insert{Entity: c.Target, Bundle: world.Bundle{value}})
		if err != nil {
			// Put back whatever was not handed over.
			for j := i; j < len(values); j++ {
				_ = mc.World.Insert(ids[j], values[j])
			}
			return fmt.Errorf("move %s: %w", c.Component, err)
		}
	}
	return nil
}

// Reply sends Command back to the world that sent the message being
// executed.
type Reply struct {
	Command Command
}

func (Reply) Kind() CommandKind { return KindReply }
func (Reply) isCommand()        {}

func (c Reply) Execute(mc *MessageContext) error {
	return mc.Reply(c.Command)
}

// Forward sends Command on to world To. The executing world becomes the
// source of the new message.
type Forward struct {
	To      WorldID
	Command Command
}

func (Forward) Kind() CommandKind { return KindForward }
func (Forward) isCommand()        {}

func (c Forward) Execute(mc *MessageContext) error {
	if c.Command == nil {
		return ErrNilCommand
	}
	return mc.Send(c.To, c.Command)
}
