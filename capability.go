package lockbridge

import (
	"context"
	"time"

	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
)

// DoorLockFlag marks devices carrying the bridge's door lock capability. The
// da capability set has no standard lock, so this follows the proprietary
// flag convention.
const DoorLockFlag = da.Capability(0x40)

// DoorLockStatus is the externally visible state of one lock.
type DoorLockStatus struct {
	State      LockState
	Target     LockState
	Fault      bool
	LowBattery bool
	Pending    bool
}

// DoorLock controls a simulated lock bound to a bridge slot.
type DoorLock interface {
	da.BasicCapability

	Status(ctx context.Context) (DoorLockStatus, error)
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	ClearErrors(ctx context.Context) error
}

// DoorLockUpdate is published on the gateway event channel whenever a lock's
// state, fault or battery flags change, so protocol adapters can republish.
type DoorLockUpdate struct {
	Device da.Device
	State  DoorLockStatus
}

func statusFromSnapshot(s LockSnapshot) DoorLockStatus {
	return DoorLockStatus{
		State:      s.State,
		Target:     s.Target,
		Fault:      s.Fault,
		LowBattery: s.LowBattery,
		Pending:    s.Pending,
	}
}

func (b *Bridge) capabilityFor(c da.Capability, l *lock) da.BasicCapability {
	switch c {
	case DoorLockFlag:
		return &doorLockCapability{bridge: b, l: l}
	case capabilities.IdentifyFlag:
		return &identifyCapability{bridge: b, l: l}
	case capabilities.DeviceRemovalFlag:
		return &deviceRemovalCapability{bridge: b, l: l}
	}

	return nil
}

type doorLockCapability struct {
	bridge *Bridge
	l      *lock
}

func (c *doorLockCapability) Capability() da.Capability {
	return DoorLockFlag
}

func (c *doorLockCapability) Name() string {
	return "DoorLock"
}

func (c *doorLockCapability) Status(_ context.Context) (DoorLockStatus, error) {
	now := time.Now()

	c.bridge.m.RLock()
	defer c.bridge.m.RUnlock()

	if c.bridge.slots[c.l.slot] != c.l {
		return DoorLockStatus{}, ErrNotFound
	}

	return statusFromSnapshot(c.bridge.snapshotLock(c.l, now)), nil
}

func (c *doorLockCapability) Lock(ctx context.Context) error {
	return c.bridge.SetTarget(ctx, c.l.slot, Secured)
}

func (c *doorLockCapability) Unlock(ctx context.Context) error {
	return c.bridge.SetTarget(ctx, c.l.slot, Unsecured)
}

func (c *doorLockCapability) ClearErrors(ctx context.Context) error {
	return c.bridge.ClearErrors(ctx, c.l.slot)
}

var _ DoorLock = (*doorLockCapability)(nil)
var _ da.BasicCapability = (*doorLockCapability)(nil)

type identifyCapability struct {
	bridge *Bridge
	l      *lock
}

func (c *identifyCapability) Capability() da.Capability {
	return capabilities.IdentifyFlag
}

func (c *identifyCapability) Name() string {
	return capabilities.StandardNames[capabilities.IdentifyFlag]
}

func (c *identifyCapability) Identify(ctx context.Context, duration time.Duration) error {
	return c.bridge.Identify(ctx, c.l.slot, duration)
}

func (c *identifyCapability) Status(_ context.Context) (capabilities.IdentifyState, error) {
	c.bridge.m.RLock()
	defer c.bridge.m.RUnlock()

	remaining := time.Until(c.l.identifyUntil)
	if remaining < 0 {
		remaining = 0
	}

	return capabilities.IdentifyState{
		Identifying: remaining > 0,
		Remaining:   remaining,
	}, nil
}

var _ capabilities.Identify = (*identifyCapability)(nil)
var _ da.BasicCapability = (*identifyCapability)(nil)

type deviceRemovalCapability struct {
	bridge *Bridge
	l      *lock
}

func (c *deviceRemovalCapability) Capability() da.Capability {
	return capabilities.DeviceRemovalFlag
}

func (c *deviceRemovalCapability) Name() string {
	return capabilities.StandardNames[capabilities.DeviceRemovalFlag]
}

func (c *deviceRemovalCapability) Remove(ctx context.Context, _ capabilities.RemovalType) error {
	return c.bridge.RemoveLock(ctx, c.l.slot)
}

var _ capabilities.DeviceRemoval = (*deviceRemovalCapability)(nil)
var _ da.BasicCapability = (*deviceRemovalCapability)(nil)
