package core

import (
	"time"

	"go.uber.org/zap"
)

// WorldID identifies one registered world. IDs are assigned at registration
// and never reused.
type WorldID string

// String returns the string representation of WorldID.
func (id WorldID) String() string {
	return string(id)
}

// IsValid checks if the id can be registered.
func (id WorldID) IsValid() bool {
	return id != ""
}

// ExchangeState represents the registration state of an Exchange.
type ExchangeState uint8

const (
	// ExchangeBuilding means worlds may still be registered
	ExchangeBuilding ExchangeState = iota

	// ExchangeSpawned means the router is running and the registry is frozen
	ExchangeSpawned
)

// String returns the string representation of ExchangeState.
func (s ExchangeState) String() string {
	switch s {
	case ExchangeBuilding:
		return "building"
	case ExchangeSpawned:
		return "spawned"
	default:
		return "unknown"
	}
}

// CommandKind identifies a command variant.
type CommandKind uint8

const (
	// KindSpawn spawns a bundle as a new entity
	KindSpawn CommandKind = iota

	// KindInsert attaches a bundle to an existing entity
	KindInsert

	// KindCloneQuery duplicates components and sends them to another world
	KindCloneQuery

	// KindCopyComponent copies a single plain component to another world
	KindCopyComponent

	// KindMoveKeyed removes keyed components and sends them to another world
	KindMoveKeyed

	// KindReply sends a command back to the sender
	KindReply

	// KindForward re-sends a command to another world
	KindForward
)

// String returns the string representation of CommandKind.
func (k CommandKind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindInsert:
		return "insert"
	case KindCloneQuery:
		return "clone_query"
	case KindCopyComponent:
		return "copy_component"
	case KindMoveKeyed:
		return "move_keyed"
	case KindReply:
		return "reply"
	case KindForward:
		return "forward"
	default:
		return "unknown"
	}
}

// ExchangeOptions contains configuration options for creating an Exchange.
type ExchangeOptions struct {
	// Logger receives router and registration logs
	Logger *zap.Logger

	// Metrics records routing statistics; nil disables metrics
	Metrics *Metrics

	// FailureBuffer sets the capacity of the router failure channel
	FailureBuffer int
}

// DefaultExchangeOptions returns sensible default options.
func DefaultExchangeOptions() ExchangeOptions {
	return ExchangeOptions{
		Logger:        zap.NewNop(),
		FailureBuffer: 100,
	}
}

// RouterStats contains runtime statistics for a Router.
type RouterStats struct {
	// Worlds registered when the router started
	Worlds int

	// Endpoints still connected
	Live int

	// Messages forwarded to their destination
	Routed uint64

	// Messages dropped because of a routing failure
	Dropped uint64

	// Time the router started
	StartedAt time.Time
}
