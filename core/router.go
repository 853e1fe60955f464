package core

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Queue depth labels, from the world's point of view.
const (
	directionOutbound = "outbound"
	directionInbound  = "inbound"
)

// Router forwards messages between world channels. It runs on its own
// goroutine, waits on every world's outbound queue at once, stamps each
// message with the queue's world and pushes it onto the destination's
// inbound queue.
//
// A message the router cannot forward is dropped and reported; the router
// itself never stops because of a bad message.
type Router struct {
	// Registry, read-only once the router exists
	endpoints []*endpoint
	index     map[WorldID]*endpoint

	logger   *zap.Logger
	metrics  *Metrics
	failures chan *RoutingError

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Atomic counters for statistics
	routed    atomic.Uint64
	dropped   atomic.Uint64
	live      atomic.Int64
	startedAt time.Time
}

func newRouter(endpoints []*endpoint, index map[WorldID]*endpoint, opts ExchangeOptions) *Router {
	r := &Router{
		endpoints: endpoints,
		index:     index,
		logger:    opts.Logger.Named("router"),
		metrics:   opts.Metrics,
		failures:  make(chan *RoutingError, opts.FailureBuffer),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	r.live.Store(int64(len(endpoints)))
	return r
}

// Stop asks the router to exit. Undelivered messages are dropped and every
// channel is disconnected.
func (r *Router) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// Done is closed once the router has exited and disconnected every channel.
func (r *Router) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the router has exited or ctx is done.
func (r *Router) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns the channel on which routing failures are reported.
// Reports are dropped when nobody keeps up with the channel.
func (r *Router) Failures() <-chan *RoutingError {
	return r.failures
}

// Worlds returns the world IDs the router serves, in registration order.
func (r *Router) Worlds() []WorldID {
	ids := make([]WorldID, len(r.endpoints))
	for i, ep := range r.endpoints {
		ids[i] = ep.id
	}
	return ids
}

// Stats returns current runtime statistics for this Router.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Worlds:    len(r.endpoints),
		Live:      int(r.live.Load()),
		Routed:    r.routed.Load(),
		Dropped:   r.dropped.Load(),
		StartedAt: r.startedAt,
	}
}

// Select case layout: the two control cases come first, then one case per
// live endpoint.
const (
	caseContext = iota
	caseStop
	caseFirstEndpoint
)

// run is the main routing loop.
func (r *Router) run(ctx context.Context) {
	defer close(r.done)
	defer r.shutdown()

	live := make([]*endpoint, len(r.endpoints))
	copy(live, r.endpoints)
	cases := r.selectCases(ctx, live)

	for {
		// reflect.Select picks uniformly among ready cases, so no world
		// can starve the others.
		chosen, _, _ := reflect.Select(cases)
		if chosen < caseFirstEndpoint {
			return
		}

		ep := live[chosen-caseFirstEndpoint]
		msg, err := ep.inbound.tryPop()
		switch {
		case errors.Is(err, ErrEmpty):
			continue

		case errors.Is(err, ErrDisconnected):
			live = append(live[:chosen-caseFirstEndpoint], live[chosen-caseFirstEndpoint+1:]...)
			r.live.Store(int64(len(live)))
			cases = r.selectCases(ctx, live)
			r.logger.Info("world disconnected", zap.String("world", string(ep.id)))
			continue
		}

		r.metrics.depth(ep.id, directionOutbound, ep.inbound.len())
		r.route(ep.id, msg)
	}
}

func (r *Router) selectCases(ctx context.Context, live []*endpoint) []reflect.SelectCase {
	cases := make([]reflect.SelectCase, 0, caseFirstEndpoint+len(live))
	cases = append(cases,
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(r.stop)},
	)
	for _, ep := range live {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ep.inbound.ready)})
	}
	return cases
}

// route stamps and forwards a single message received from src.
func (r *Router) route(src WorldID, msg *Message) {
	if err := msg.stamp(src); err != nil {
		r.fail(ReasonRestamped, src, msg, err)
		return
	}

	dst, ok := r.index[msg.destination]
	if !ok {
		r.fail(ReasonUnknownDestination, src, msg, ErrUnknownDestination)
		return
	}

	if err := dst.outbound.push(msg); err != nil {
		r.fail(ReasonDisconnected, src, msg, err)
		return
	}

	r.routed.Add(1)
	r.metrics.routed(src, dst.id, msg.createdAt)
	r.metrics.depth(dst.id, directionInbound, dst.outbound.len())

	if ce := r.logger.Check(zap.DebugLevel, "message routed"); ce != nil {
		ce.Write(
			zap.Stringer("message_id", msg.id),
			zap.Stringer("kind", msg.Kind()),
			zap.String("source", string(src)),
			zap.String("destination", string(dst.id)),
		)
	}
}

// fail drops a message and reports why.
func (r *Router) fail(reason RoutingReason, src WorldID, msg *Message, err error) {
	r.dropped.Add(1)
	r.metrics.routingFailed(reason)

	rerr := &RoutingError{
		Reason:      reason,
		MessageID:   msg.id,
		Source:      src,
		Destination: msg.destination,
		Err:         err,
	}

	r.logger.Warn("dropping message",
		zap.String("reason", string(reason)),
		zap.Stringer("message_id", msg.id),
		zap.String("source", string(src)),
		zap.String("destination", string(msg.destination)),
		zap.Error(err),
	)

	select {
	case r.failures <- rerr:
	default:
		r.metrics.failureDropped()
	}
}

// shutdown drops whatever is still waiting at the exchange and disconnects
// every channel so blocked workers wake up.
func (r *Router) shutdown() {
	var pending int
	for _, ep := range r.endpoints {
		for range ep.inbound.drain() {
			pending++
			r.dropped.Add(1)
			r.metrics.routingFailed(ReasonShutdown)
		}
		ep.inbound.close()
		ep.outbound.close()
	}
	r.live.Store(0)

	r.logger.Info("router stopped",
		zap.Uint64("routed", r.routed.Load()),
		zap.Uint64("dropped", r.dropped.Load()),
		zap.Int("pending_dropped", pending),
	)
}
