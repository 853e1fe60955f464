package core

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/najoast/worldex/world"
)

// Message is a deferred unit of work addressed to one world. The source is
// unknown until the router forwards the message and stamps it with the
// sending world.
type Message struct {
	id          uuid.UUID
	source      atomic.Pointer[WorldID]
	destination WorldID
	command     Command
	createdAt   time.Time
	executed    atomic.Bool
}

// NewMessage creates a message carrying cmd for the given world.
func NewMessage(to WorldID, cmd Command) *Message {
	return &Message{
		id:          uuid.New(),
		destination: to,
		command:     cmd,
		createdAt:   time.Now(),
	}
}

// ID returns the unique identifier of this message.
func (m *Message) ID() uuid.UUID {
	return m.id
}

// Source returns the world that sent the message. It fails with
// ErrSourceNotStamped until the router has forwarded the message.
func (m *Message) Source() (WorldID, error) {
	src := m.source.Load()
	if src == nil {
		return "", ErrSourceNotStamped
	}
	return *src, nil
}

// Destination returns the world the message is addressed to.
func (m *Message) Destination() WorldID {
	return m.destination
}

// Command returns the payload of the message.
func (m *Message) Command() Command {
	return m.command
}

// Kind returns the kind of the payload.
func (m *Message) Kind() CommandKind {
	if m.command == nil {
		return CommandKind(255)
	}
	return m.command.Kind()
}

// CreatedAt returns the time the message was built.
func (m *Message) CreatedAt() time.Time {
	return m.createdAt
}

// Delivered reports whether the router has stamped the source.
func (m *Message) Delivered() bool {
	return m.source.Load() != nil
}

// stamp records the sending world. Only the router calls it, exactly once.
func (m *Message) stamp(src WorldID) error {
	if !m.source.CompareAndSwap(nil, &src) {
		return ErrSourceAlreadyStamped
	}
	return nil
}

// Execute runs the payload against the receiving world. A message can be
// executed only once.
func (m *Message) Execute(w *world.World, ch *Channel) error {
	if m.command == nil {
		return ErrNilCommand
	}
	if !m.executed.CompareAndSwap(false, true) {
		return ErrAlreadyExecuted
	}
	return m.command.Execute(&MessageContext{World: w, Channel: ch, Message: m})
}

// String returns a string representation of the message.
func (m *Message) String() string {
	src := "?"
	if s := m.source.Load(); s != nil {
		src = string(*s)
	}
	return fmt.Sprintf("Message{id: %s, kind: %s, from: %s, to: %s}", m.id, m.Kind(), src, m.destination)
}

// MessageContext is handed to a payload while it executes. It is valid only
// for the duration of that call.
type MessageContext struct {
	// World is the receiving world, exclusively owned for the call
	World *world.World

	// Channel is the receiving world's own channel
	Channel *Channel

	// Message is the message being executed; nil for local execution
	Message *Message
}

// Source returns the world that sent the message being executed.
func (mc *MessageContext) Source() (WorldID, error) {
	if mc.Message == nil {
		return "", ErrSourceNotStamped
	}
	return mc.Message.Source()
}

// Send builds a message carrying cmd for the given world and sends it on the
// executing world's channel.
func (mc *MessageContext) Send(to WorldID, cmd Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	if err := mc.Channel.SendTo(to, cmd); err != nil {
		return fmt.Errorf("send %s to %s: %w", cmd.Kind(), to, err)
	}
	return nil
}

// Reply sends cmd back to the world that sent the message being executed.
func (mc *MessageContext) Reply(cmd Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	src, err := mc.Source()
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return mc.Send(src, cmd)
}

// Apply executes cmd directly against the caller's own world, without going
// through the router. Commands that need a sender, such as Reply, fail with
// ErrSourceNotStamped.
func Apply(w *world.World, ch *Channel, cmd Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	return cmd.Execute(&MessageContext{World: w, Channel: ch})
}
