package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Exchange is the registry of world channels. Worlds are registered while the
// exchange is building; Start freezes the registry and hands it to a Router.
type Exchange struct {
	mu sync.Mutex

	state ExchangeState

	// Exchange-side endpoints in registration order
	endpoints []*endpoint

	// Maps world ID to its endpoint
	index map[WorldID]*endpoint

	// IDs kept for inspection after the router took ownership
	worlds []WorldID

	opts   ExchangeOptions
	logger *zap.Logger
}

// NewExchange creates an Exchange in the building state.
func NewExchange(opts ExchangeOptions) *Exchange {
	defaults := DefaultExchangeOptions()
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	if opts.FailureBuffer <= 0 {
		opts.FailureBuffer = defaults.FailureBuffer
	}

	return &Exchange{
		index:  make(map[WorldID]*endpoint),
		opts:   opts,
		logger: opts.Logger.Named("exchange"),
	}
}

// Register declares a world and returns the channel its worker uses. It must
// be called before Start.
func (e *Exchange) Register(id WorldID) (*Channel, error) {
	if !id.IsValid() {
		return nil, ErrInvalidWorldID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != ExchangeBuilding {
		return nil, fmt.Errorf("cannot register world %s: %w", id, ErrExchangeStarted)
	}
	if _, exists := e.index[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateWorld, id)
	}

	ch, ep := newPair(id)
	e.endpoints = append(e.endpoints, ep)
	e.index[id] = ep
	e.worlds = append(e.worlds, id)

	e.logger.Debug("world registered", zap.String("world", string(id)))
	return ch, nil
}

// Worlds returns the registered world IDs in registration order.
func (e *Exchange) Worlds() []WorldID {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]WorldID, len(e.worlds))
	copy(ids, e.worlds)
	return ids
}

// State returns the current state of the exchange.
func (e *Exchange) State() ExchangeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start freezes the registry and spawns the router goroutine. The router runs
// until ctx is done or Router.Stop is called. Start may be called only once.
func (e *Exchange) Start(ctx context.Context) (*Router, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != ExchangeBuilding {
		return nil, ErrExchangeStarted
	}
	e.state = ExchangeSpawned

	r := newRouter(e.endpoints, e.index, e.opts)

	// The router owns the registry from here on.
	e.endpoints = nil
	e.index = nil

	go r.run(ctx)

	e.logger.Info("exchange started", zap.Int("worlds", len(e.worlds)))
	return r, nil
}
