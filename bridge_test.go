package lockbridge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/lockbridge/rules"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fastTuningRules = `
name: test
rules:
  - description: fast operations for every lock
    filter: "Lock.Slot >= 0"
    settings:
      doorlock:
        OperationBaseMs: 10
        OperationStaggerMs: 0
`

func fastBridge(t *testing.T, outcomes ...operationOutcome) *Bridge {
	t.Helper()

	e := rules.New()
	require.NoError(t, e.LoadReader(strings.NewReader(fastTuningRules)))
	require.NoError(t, e.CompileRules())

	b := New(4, memory.New())
	b.WithRules(e)
	b.outcomes = &outcomeScript{outcomes: outcomes}
	b.resolution = time.Millisecond

	require.NoError(t, b.Start())
	t.Cleanup(func() { _ = b.Stop() })

	return b
}

func Test_bridge_New(t *testing.T) {
	t.Run("implements the device abstraction gateway", func(t *testing.T) {
		b := New(4, memory.New())

		assert.Implements(t, (*da.Gateway)(nil), b)
	})

	t.Run("clamps capacity to the supported range", func(t *testing.T) {
		_, capacity := New(0, memory.New()).LockCount()
		assert.Equal(t, DefaultCapacity, capacity)

		_, capacity = New(99, memory.New()).LockCount()
		assert.Equal(t, MaximumCapacity, capacity)

		_, capacity = New(6, memory.New()).LockCount()
		assert.Equal(t, 6, capacity)
	})
}

func Test_bridge_Devices(t *testing.T) {
	t.Run("lists the bridge itself plus every bound lock", func(t *testing.T) {
		b := New(4, memory.New())
		_ = b.Start()
		defer b.Stop()

		assert.Len(t, b.Devices(), 1)
		assert.Equal(t, "lockbridge", b.Self().Identifier().String())

		_, err := b.AddLock(context.Background(), "Front Door")
		assert.NoError(t, err)

		devices := b.Devices()
		assert.Len(t, devices, 2)
		assert.True(t, devices[1].HasCapability(DoorLockFlag))
	})
}

func Test_bridge_endToEnd(t *testing.T) {
	t.Run("lock operation resolves to secured through the scheduler", func(t *testing.T) {
		b := fastBridge(t, outcomeSuccess)
		ctx := context.Background()

		slot, err := b.AddLock(ctx, "Front Door")
		require.NoError(t, err)

		require.NoError(t, b.SetTarget(ctx, slot, Secured))

		snap := b.Snapshot()
		require.Len(t, snap, 1)
		assert.Equal(t, UnknownState, snap[0].State)
		assert.True(t, snap[0].Pending)

		assert.Eventually(t, func() bool {
			s := b.Snapshot()
			return len(s) == 1 && s[0].State == Secured && !s[0].Pending
		}, time.Second, 2*time.Millisecond)
	})

	t.Run("jammed operation is recovered by clearing errors", func(t *testing.T) {
		b := fastBridge(t, outcomeJammed, outcomeSuccess)
		ctx := context.Background()

		slot, err := b.AddLock(ctx, "Front Door")
		require.NoError(t, err)

		require.NoError(t, b.SetTarget(ctx, slot, Secured))

		assert.Eventually(t, func() bool {
			s := b.Snapshot()
			return len(s) == 1 && s[0].State == Jammed
		}, time.Second, 2*time.Millisecond)

		assert.ErrorIs(t, b.SetTarget(ctx, slot, Unsecured), ErrInvalidTransition)

		require.NoError(t, b.ClearErrors(ctx, slot))

		s := b.Snapshot()
		assert.Equal(t, Secured, s[0].State)
	})

	t.Run("identify overlay expires through the scheduler", func(t *testing.T) {
		b := fastBridge(t, outcomeSuccess)
		ctx := context.Background()

		slot, err := b.AddLock(ctx, "Front Door")
		require.NoError(t, err)

		require.NoError(t, b.Identify(ctx, slot, 20*time.Millisecond))
		assert.True(t, b.Snapshot()[0].Identifying)

		assert.Eventually(t, func() bool {
			return !b.Snapshot()[0].Identifying
		}, time.Second, 2*time.Millisecond)
	})

	t.Run("rejects invalid targets without enqueueing", func(t *testing.T) {
		b := fastBridge(t, outcomeSuccess)
		ctx := context.Background()

		slot, _ := b.AddLock(ctx, "Front Door")

		assert.ErrorIs(t, b.SetTarget(ctx, slot, Jammed), ErrInvalidTransition)
		assert.ErrorIs(t, b.SetTarget(ctx, slot, UnknownState), ErrInvalidTransition)
	})

	t.Run("enqueue honours caller cancellation", func(t *testing.T) {
		b := fastBridge(t, outcomeSuccess)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := b.AddLock(ctx, "Front Door")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("public mutators fail once the bridge is stopped", func(t *testing.T) {
		b := New(4, memory.New())
		_ = b.Start()
		_ = b.Stop()

		_, err := b.AddLock(context.Background(), "Front Door")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
