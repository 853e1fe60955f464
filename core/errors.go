package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Channel errors
var (
	ErrDisconnected = errors.New("channel disconnected")
	ErrEmpty        = errors.New("channel empty")
)

// Registration errors
var (
	ErrInvalidWorldID  = errors.New("invalid world id")
	ErrDuplicateWorld  = errors.New("world already registered")
	ErrExchangeStarted = errors.New("exchange already started")
)

// Message errors
var (
	ErrUnknownDestination   = errors.New("unknown destination")
	ErrSourceNotStamped     = errors.New("message source is not available until the message is delivered")
	ErrSourceAlreadyStamped = errors.New("message source already stamped")
	ErrAlreadyExecuted      = errors.New("message already executed")
	ErrNilCommand           = errors.New("nil command")
	ErrNilMessage           = errors.New("nil message")
	ErrEmptyQuery           = errors.New("query names no components")
)

// RoutingReason classifies a routing failure.
type RoutingReason string

const (
	// ReasonUnknownDestination means the destination was never registered.
	ReasonUnknownDestination RoutingReason = "unknown_destination"

	// ReasonDisconnected means the destination world has closed its channel.
	ReasonDisconnected RoutingReason = "disconnected"

	// ReasonRestamped means an already delivered message was sent again.
	ReasonRestamped RoutingReason = "restamped"

	// ReasonShutdown means the router stopped before forwarding the message.
	ReasonShutdown RoutingReason = "shutdown"
)

// RoutingError describes a message the router could not forward. The message
// is dropped; the router keeps running.
type RoutingError struct {
	Reason      RoutingReason
	MessageID   uuid.UUID
	Source      WorldID
	Destination WorldID
	Err         error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing %s from %s to %s failed (%s): %v",
		e.MessageID, e.Source, e.Destination, e.Reason, e.Err)
}

func (e *RoutingError) Unwrap() error {
	return e.Err
}

// ExecutionError wraps a failure returned by a message payload. It is local to
// the world that executed the message.
type ExecutionError struct {
	World     WorldID
	MessageID uuid.UUID
	Kind      CommandKind
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("world %s failed to execute %s message %s: %v",
		e.World, e.Kind, e.MessageID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
