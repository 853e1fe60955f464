package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := newQueue()

	var sent []*Message
	for i := 0; i < 5; i++ {
		msg := NewMessage("B", Spawn{})
		sent = append(sent, msg)
		require.NoError(t, q.push(msg))
	}
	assert.Equal(t, 5, q.len())

	for _, want := range sent {
		got, err := q.tryPop()
		require.NoError(t, err)
		assert.Same(t, want, got)
	}

	_, err := q.tryPop()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestQueueCloseDrainsThenDisconnects(t *testing.T) {
	q := newQueue()
	msg := NewMessage("B", Spawn{})
	require.NoError(t, q.push(msg))

	q.close()
	q.close()

	assert.ErrorIs(t, q.push(NewMessage("B", Spawn{})), ErrDisconnected)

	got, err := q.pop(context.Background())
	require.NoError(t, err)
	assert.Same(t, msg, got)

	_, err = q.pop(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := newQueue()
	msg := NewMessage("B", Spawn{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.push(msg)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	got, err := q.pop(ctx)
	require.NoError(t, err)
	assert.Same(t, msg, got)
}

func TestQueuePopHonoursContext(t *testing.T) {
	q := newQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueDrain(t *testing.T) {
	q := newQueue()
	require.NoError(t, q.push(NewMessage("B", Spawn{})))
	require.NoError(t, q.push(NewMessage("B", Spawn{})))

	assert.Len(t, q.drain(), 2)
	assert.Equal(t, 0, q.len())
}

func TestChannelSendValidation(t *testing.T) {
	ch, _ := newPair("A")

	assert.ErrorIs(t, ch.Send(nil), ErrNilMessage)
	assert.ErrorIs(t, ch.SendTo("B", nil), ErrNilCommand)
	assert.True(t, ch.Connected())

	ch.Close()
	assert.False(t, ch.Connected())
	assert.ErrorIs(t, ch.TrySend(NewMessage("B", Spawn{})), ErrDisconnected)
}
