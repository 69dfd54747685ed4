package lockbridge

import (
	"context"
	"testing"
	"time"

	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_device_capabilities(t *testing.T) {
	t.Run("every lock advertises door lock, identify and removal", func(t *testing.T) {
		b := New(4, memory.New())
		l, _ := b.createLock("Front Door")

		d := b.deviceFor(l)

		assert.True(t, d.HasCapability(DoorLockFlag))
		assert.True(t, d.HasCapability(capabilities.IdentifyFlag))
		assert.True(t, d.HasCapability(capabilities.DeviceRemovalFlag))
		assert.False(t, d.HasCapability(da.Capability(0x99)))
	})

	t.Run("capability accessors return typed implementations", func(t *testing.T) {
		b := New(4, memory.New())
		l, _ := b.createLock("Front Door")

		assert.Implements(t, (*DoorLock)(nil), b.capabilityFor(DoorLockFlag, l))
		assert.Implements(t, (*capabilities.Identify)(nil), b.capabilityFor(capabilities.IdentifyFlag, l))
		assert.Implements(t, (*capabilities.DeviceRemoval)(nil), b.capabilityFor(capabilities.DeviceRemovalFlag, l))
		assert.Nil(t, b.capabilityFor(da.Capability(0x99), l))
	})
}

func Test_doorLockCapability(t *testing.T) {
	t.Run("status reflects the live slot", func(t *testing.T) {
		b := New(4, memory.New())
		l, _ := b.createLock("Front Door")
		l.state = Secured
		l.lowBattery = true

		dl := b.capabilityFor(DoorLockFlag, l).(DoorLock)

		status, err := dl.Status(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, Secured, status.State)
		assert.True(t, status.LowBattery)
		assert.False(t, status.Pending)
	})

	t.Run("status of a removed lock returns not found", func(t *testing.T) {
		b := New(4, memory.New())
		l, _ := b.createLock("Front Door")

		dl := b.capabilityFor(DoorLockFlag, l).(DoorLock)

		_ = b.apply(intent{kind: intentRemoveLock, slot: 0})

		_, err := dl.Status(context.Background())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("lock and unlock start operations via the bridge", func(t *testing.T) {
		b := fastBridge(t, outcomeSuccess, outcomeSuccess)

		slot, err := b.AddLock(context.Background(), "Front Door")
		require.NoError(t, err)

		l := b.getLock(slot)
		dl := b.capabilityFor(DoorLockFlag, l).(DoorLock)

		require.NoError(t, dl.Lock(context.Background()))

		assert.Eventually(t, func() bool {
			status, err := dl.Status(context.Background())
			return err == nil && status.State == Secured
		}, time.Second, 2*time.Millisecond)

		require.NoError(t, dl.Unlock(context.Background()))

		assert.Eventually(t, func() bool {
			status, err := dl.Status(context.Background())
			return err == nil && status.State == Unsecured
		}, time.Second, 2*time.Millisecond)
	})
}

func Test_identifyCapability(t *testing.T) {
	t.Run("status reports the remaining overlay", func(t *testing.T) {
		b := New(4, memory.New())
		l, _ := b.createLock("Front Door")

		ic := b.capabilityFor(capabilities.IdentifyFlag, l).(capabilities.Identify)

		state, err := ic.Status(context.Background())
		assert.NoError(t, err)
		assert.False(t, state.Identifying)

		l.identifyUntil = time.Now().Add(time.Minute)

		state, err = ic.Status(context.Background())
		assert.NoError(t, err)
		assert.True(t, state.Identifying)
		assert.Greater(t, state.Remaining, 50*time.Second)
	})
}

func Test_deviceRemovalCapability(t *testing.T) {
	t.Run("remove retires the slot", func(t *testing.T) {
		b := fastBridge(t, outcomeSuccess)

		slot, err := b.AddLock(context.Background(), "Front Door")
		require.NoError(t, err)

		l := b.getLock(slot)
		rc := b.capabilityFor(capabilities.DeviceRemovalFlag, l).(capabilities.DeviceRemoval)

		require.NoError(t, rc.Remove(context.Background(), capabilities.Request))

		active, _ := b.LockCount()
		assert.Equal(t, 0, active)
	})
}
