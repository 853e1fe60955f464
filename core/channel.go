package core

import (
	"context"
)

// Channel is the world-side endpoint of a world's connection to the exchange.
// Messages sent on it go to the router; messages received from it were
// forwarded by the router. Both directions are unbounded FIFO queues, so
// sending never blocks.
//
// A Channel may be used from any goroutine, but the world it belongs to must
// only be touched by the goroutine that executes the received messages.
type Channel struct {
	id       WorldID
	outbound *queue
	inbound  *queue
}

// endpoint is the exchange-side view of the same pair of queues.
type endpoint struct {
	id       WorldID
	inbound  *queue
	outbound *queue
}

// newPair creates a connected world channel and exchange endpoint.
func newPair(id WorldID) (*Channel, *endpoint) {
	toExchange := newQueue()
	toWorld := newQueue()

	ch := &Channel{id: id, outbound: toExchange, inbound: toWorld}
	ep := &endpoint{id: id, inbound: toExchange, outbound: toWorld}
	return ch, ep
}

// ID returns the world this channel belongs to.
func (c *Channel) ID() WorldID {
	return c.id
}

// Send enqueues a message for the router. It fails only with ErrDisconnected
// once the channel or the router has shut down.
func (c *Channel) Send(msg *Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	return c.outbound.push(msg)
}

// TrySend is the non-blocking form of Send. Queues are unbounded, so it
// behaves exactly like Send.
func (c *Channel) TrySend(msg *Message) error {
	return c.Send(msg)
}

// SendTo builds a message carrying cmd for the given world and sends it.
func (c *Channel) SendTo(to WorldID, cmd Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	return c.Send(NewMessage(to, cmd))
}

// Recv blocks until a message arrives. It returns ErrDisconnected once the
// channel is closed and every delivered message has been received, or the
// context error if ctx is done first.
func (c *Channel) Recv(ctx context.Context) (*Message, error) {
	return c.inbound.pop(ctx)
}

// TryRecv returns the next delivered message without blocking. It returns
// ErrEmpty when nothing is waiting.
func (c *Channel) TryRecv() (*Message, error) {
	return c.inbound.tryPop()
}

// Pending returns the number of delivered messages not yet received.
func (c *Channel) Pending() int {
	return c.inbound.len()
}

// Connected reports whether messages can still be delivered to this world.
func (c *Channel) Connected() bool {
	return !c.inbound.isClosed()
}

// Close disconnects the world from the exchange. Messages already sent are
// still routed; messages addressed to this world afterwards are dropped by
// the router.
func (c *Channel) Close() {
	c.outbound.close()
	c.inbound.close()
}
