package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/najoast/worldex/world"
)

// runWorker starts wk and returns a function that stops it and reports the
// result of Run.
func runWorker(t *testing.T, wk *Worker) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- wk.Run(ctx)
	}()

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(waitTimeout):
			t.Fatal("worker did not stop")
			return nil
		}
	}
}

func TestWorkerBlocking(t *testing.T) {
	h := newHarness(t, ExchangeOptions{}, "A", "B")
	wB := world.New("B", testSchema())

	wk, err := NewWorker(wB, h.ch("B"), WorkerOptions{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	stop := runWorker(t, wk)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.ch("A").Send(SpawnInto("B", payload{X: i})))
	}

	assert.Eventually(t, func() bool {
		return wk.Stats().Executed == 3
	}, waitTimeout, time.Millisecond)

	require.NoError(t, stop())
	assert.Equal(t, 3, wB.Len())
}

func TestWorkerContinuePolicy(t *testing.T) {
	h := newHarness(t, ExchangeOptions{}, "A", "B")
	wB := world.New("B", testSchema())

	wk, err := NewWorker(wB, h.ch("B"), WorkerOptions{
		ErrorPolicy: PolicyContinue,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	stop := runWorker(t, wk)

	require.NoError(t, h.ch("A").Send(InsertInto("B", 42, payload{})))
	require.NoError(t, h.ch("A").Send(SpawnInto("B", payload{})))

	assert.Eventually(t, func() bool {
		s := wk.Stats()
		return s.Executed == 1 && s.Failed == 1
	}, waitTimeout, time.Millisecond)

	require.NoError(t, stop())
	assert.Equal(t, 1, wB.Len())
}

func TestWorkerAbortPolicy(t *testing.T) {
	h := newHarness(t, ExchangeOptions{}, "A", "B")
	wB := world.New("B", testSchema())

	wk, err := NewWorker(wB, h.ch("B"), WorkerOptions{
		ErrorPolicy: PolicyAbort,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	bad := InsertInto("B", 42, payload{})
	require.NoError(t, h.ch("A").Send(bad))

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	err = wk.Run(ctx)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, WorldID("B"), execErr.World)
	assert.Equal(t, bad.ID(), execErr.MessageID)
	assert.Equal(t, KindInsert, execErr.Kind)
	assert.ErrorIs(t, err, world.ErrNoSuchEntity)
}

func TestWorkerPolling(t *testing.T) {
	h := newHarness(t, ExchangeOptions{}, "A", "B")
	wB := world.New("B", testSchema())

	var ticks atomic.Int64
	wk, err := NewWorker(wB, h.ch("B"), WorkerOptions{
		Mode:         ModePolling,
		TickInterval: time.Millisecond,
		Tick: func(ctx context.Context, w *world.World, ch *Channel) error {
			ticks.Add(1)
			return nil
		},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	stop := runWorker(t, wk)

	require.NoError(t, h.ch("A").Send(SpawnInto("B", payload{X: 1})))

	assert.Eventually(t, func() bool {
		return wk.Stats().Executed == 1 && ticks.Load() > 1
	}, waitTimeout, time.Millisecond)

	require.NoError(t, stop())
	assert.Equal(t, 1, wB.Len())
}

func TestWorkerTickError(t *testing.T) {
	h := newHarness(t, ExchangeOptions{}, "B")
	boom := errors.New("boom")

	wk, err := NewWorker(world.New("B", nil), h.ch("B"), WorkerOptions{
		Mode: ModePolling,
		Tick: func(ctx context.Context, w *world.World, ch *Channel) error {
			return boom
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	assert.ErrorIs(t, wk.Run(ctx), boom)
}

func TestWorkerStopsOnDisconnect(t *testing.T) {
	for _, mode := range []WorkerMode{ModeBlocking, ModePolling} {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t, ExchangeOptions{}, "B")

			wk, err := NewWorker(world.New("B", nil), h.ch("B"), WorkerOptions{
				Mode:         mode,
				TickInterval: time.Millisecond,
			})
			require.NoError(t, err)

			done := make(chan error, 1)
			go func() {
				done <- wk.Run(context.Background())
			}()

			h.router.Stop()

			select {
			case err := <-done:
				assert.ErrorIs(t, err, ErrDisconnected)
			case <-time.After(waitTimeout):
				t.Fatal("worker did not notice shutdown")
			}
		})
	}
}

func TestNewWorkerValidation(t *testing.T) {
	ch, _ := newPair("A")
	w := world.New("A", nil)

	_, err := NewWorker(w, ch, WorkerOptions{Mode: "sleepy"})
	assert.Error(t, err)

	_, err = NewWorker(w, ch, WorkerOptions{ErrorPolicy: "ignore"})
	assert.Error(t, err)

	wk, err := NewWorker(w, ch, WorkerOptions{})
	require.NoError(t, err)
	assert.Same(t, w, wk.World())
	assert.Same(t, ch, wk.Channel())
}

func TestReceiveHelpers(t *testing.T) {
	h := newHarness(t, ExchangeOptions{}, "A", "B")
	wB := world.New("B", testSchema())

	require.NoError(t, h.ch("A").Send(SpawnInto("B", payload{X: 1})))
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, ReceiveMessage(ctx, wB, h.ch("B")))
	assert.Equal(t, 1, wB.Len())

	require.NoError(t, h.ch("A").Send(SpawnInto("B", payload{X: 2})))
	require.NoError(t, h.ch("A").Send(SpawnInto("B", payload{X: 3})))
	assert.Eventually(t, func() bool {
		return h.ch("B").Pending() == 2
	}, waitTimeout, time.Millisecond)

	n, err := TryReceiveMessages(wB, h.ch("B"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, wB.Len())

	n, err = TryReceiveMessages(wB, h.ch("B"))
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, h.ch("A").Send(InsertInto("B", 99, payload{})))
	err = ReceiveMessage(ctx, wB, h.ch("B"))
	var execErr *ExecutionError
	assert.True(t, errors.As(err, &execErr))
}
