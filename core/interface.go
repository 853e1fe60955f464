package core

// Command is the payload of a Message. The set of commands is closed: Spawn,
// Insert, CloneQuery, CopyComponent, MoveKeyed, Reply and Forward. Each
// carries plain values, never references into the sending world.
type Command interface {
	// Kind identifies the command variant.
	Kind() CommandKind

	// Execute runs the command against the world in mc. It is called by the
	// goroutine owning that world and must not retain mc.
	Execute(mc *MessageContext) error

	isCommand()
}
