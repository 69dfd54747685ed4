package lockbridge

import (
	"sync/atomic"
	"time"

	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/lockbridge/rules"
	"github.com/shimmeringbee/logwrap"
)

// Default operation timings. Bolt travel is staggered per slot, 1.5s base
// plus 300ms per slot, always within 1-3s.
const (
	defaultOperationBase    = 1500 * time.Millisecond
	defaultOperationStagger = 300 * time.Millisecond

	defaultJamPeriod      = 200 * time.Millisecond
	defaultIdentifyPeriod = 100 * time.Millisecond
	defaultBatteryPeriod  = 1000 * time.Millisecond
)

const tuningNamespace = "doorlock"

func (b *Bridge) tuningFor(slot int, name string) lockTuning {
	t := lockTuning{
		opDuration:     defaultOperationBase + time.Duration(slot)*defaultOperationStagger,
		jamPeriod:      defaultJamPeriod,
		identifyPeriod: defaultIdentifyPeriod,
		batteryPeriod:  defaultBatteryPeriod,
	}

	if b.rules == nil {
		return t
	}

	out, err := b.rules.Execute(rules.Input{Lock: rules.InputLock{Name: name, Slot: slot}})
	if err != nil {
		b.logger.LogWarn(b.ctx, "Lock tuning rules failed, using defaults.", logwrap.Datum("Slot", slot), logwrap.Err(err))
		return t
	}

	base := out.Int(tuningNamespace, "OperationBaseMs", int(defaultOperationBase/time.Millisecond))
	stagger := out.Int(tuningNamespace, "OperationStaggerMs", int(defaultOperationStagger/time.Millisecond))

	t.opDuration = time.Duration(base+slot*stagger) * time.Millisecond
	t.jamPeriod = time.Duration(out.Int(tuningNamespace, "JamBlinkMs", int(defaultJamPeriod/time.Millisecond))) * time.Millisecond
	t.identifyPeriod = time.Duration(out.Int(tuningNamespace, "IdentifyBlinkMs", int(defaultIdentifyPeriod/time.Millisecond))) * time.Millisecond
	t.batteryPeriod = time.Duration(out.Int(tuningNamespace, "BatteryBlinkMs", int(defaultBatteryPeriod/time.Millisecond))) * time.Millisecond

	return t
}

// createLock binds the lowest free slot. Caller must not hold the registry
// lock; only the intent loop and start-up restore may call this.
func (b *Bridge) createLock(name string) (*lock, error) {
	if len(name) > maximumNameLength {
		name = name[:maximumNameLength]
	}

	b.m.Lock()

	slot := -1
	for i, l := range b.slots {
		if l == nil {
			slot = i
			break
		}
	}

	if slot == -1 {
		b.m.Unlock()
		return nil, ErrCapacityExceeded
	}

	l := b.newLockRecord(slot, b.nextExternalID(slot), name)
	b.slots[slot] = l
	b.m.Unlock()

	b.persistLock(l)
	b.announceLock(l)

	return l, nil
}

// restoreLock rebinds a specific slot from persisted state during Start.
func (b *Bridge) restoreLock(slot int, externalID ExternalID, name string, state LockState, lowBattery bool) *lock {
	b.m.Lock()

	l := b.newLockRecord(slot, externalID, name)
	l.state = state
	l.lowBattery = lowBattery

	// A persisted Unknown has lost its pending operation; degrade to a fault
	// so the state carries its cause.
	if l.state == UnknownState {
		l.fault = true
	}

	b.slots[slot] = l
	b.m.Unlock()

	b.announceLock(l)

	return l
}

func (b *Bridge) newLockRecord(slot int, externalID ExternalID, name string) *lock {
	return &lock{
		slot:       slot,
		externalID: externalID,
		tuning:     b.tuningFor(slot, name),
		pin:        b.pinProvider(slot),
		level:      &atomic.Bool{},
		name:       name,
		state:      Unsecured,
		target:     Unsecured,
	}
}

func (b *Bridge) announceLock(l *lock) {
	d := b.deviceFor(l)

	b.sendEvent(da.DeviceAdded{Device: d})
	for _, c := range deviceCapabilities() {
		b.sendEvent(da.CapabilityAdded{Device: d, Capability: c})
	}

	b.logger.LogInfo(b.ctx, "Lock bound to slot.", logwrap.Datum("Slot", l.slot), logwrap.Datum("Identifier", l.externalID.String()), logwrap.Datum("Name", l.name))
}

func (b *Bridge) getLock(slot int) *lock {
	b.m.RLock()
	defer b.m.RUnlock()

	if slot < 0 || slot >= len(b.slots) {
		return nil
	}

	return b.slots[slot]
}

func (b *Bridge) getLocks() []*lock {
	b.m.RLock()
	defer b.m.RUnlock()

	var locks []*lock

	for _, l := range b.slots {
		if l != nil {
			locks = append(locks, l)
		}
	}

	return locks
}

// Snapshot returns a consistent read-only view of every active slot, in slot
// order.
func (b *Bridge) Snapshot() []LockSnapshot {
	now := time.Now()

	b.m.RLock()
	defer b.m.RUnlock()

	var snapshots []LockSnapshot

	for _, l := range b.slots {
		if l != nil {
			snapshots = append(snapshots, b.snapshotLock(l, now))
		}
	}

	return snapshots
}

// LockCount returns the number of active slots and the registry capacity.
func (b *Bridge) LockCount() (int, int) {
	b.m.RLock()
	defer b.m.RUnlock()

	active := 0
	for _, l := range b.slots {
		if l != nil {
			active++
		}
	}

	return active, len(b.slots)
}

// SlotByExternalID resolves a protocol binding key to its slot.
func (b *Bridge) SlotByExternalID(id string) (int, bool) {
	b.m.RLock()
	defer b.m.RUnlock()

	for _, l := range b.slots {
		if l != nil && string(l.externalID) == id {
			return l.slot, true
		}
	}

	return 0, false
}

// DeviceByExternalID resolves a protocol binding key to its da.Device.
func (b *Bridge) DeviceByExternalID(id string) (da.Device, bool) {
	b.m.RLock()
	defer b.m.RUnlock()

	for _, l := range b.slots {
		if l != nil && string(l.externalID) == id {
			return b.deviceFor(l), true
		}
	}

	return nil, false
}

func deviceCapabilities() []da.Capability {
	return []da.Capability{DoorLockFlag, capabilities.IdentifyFlag, capabilities.DeviceRemovalFlag}
}
