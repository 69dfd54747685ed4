package lockbridge

import (
	"time"

	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/logwrap"
)

const defaultIdentifyDuration = 5 * time.Second

// apply executes one intent against the registry. Only the intent loop may
// call this; every path that changes state, fault or battery recomputes the
// indicator before returning, so observers never see a stale pattern.
func (b *Bridge) apply(i intent) intentResult {
	switch i.kind {
	case intentAddLock:
		return b.applyAdd(i.name)
	case intentRemoveLock:
		return b.applyRemove(i.slot)
	case intentSetTarget:
		return b.applyUpdate(i.slot, func(now time.Time, l *lock) (bool, error) {
			return b.setTarget(now, l, i.target)
		})
	case intentResolveOperation:
		return b.applyUpdate(i.slot, func(now time.Time, l *lock) (bool, error) {
			return b.resolveOperation(now, l, i.deadline)
		})
	case intentForceJam:
		return b.applyUpdate(i.slot, func(_ time.Time, l *lock) (bool, error) {
			return b.forceJam(l)
		})
	case intentToggleLowBattery:
		return b.applyUpdate(i.slot, func(_ time.Time, l *lock) (bool, error) {
			l.lowBattery = !l.lowBattery
			return true, nil
		})
	case intentClearErrors:
		return b.applyUpdate(i.slot, func(_ time.Time, l *lock) (bool, error) {
			return b.clearErrors(l)
		})
	case intentRename:
		return b.applyUpdate(i.slot, func(_ time.Time, l *lock) (bool, error) {
			name := i.name
			if len(name) > maximumNameLength {
				name = name[:maximumNameLength]
			}
			l.name = name
			return true, nil
		})
	case intentIdentify:
		return b.applyIdentify(i.slot, i.duration)
	case intentIdentifyExpire:
		return b.applyIdentifyExpire(i.slot, i.deadline)
	}

	return intentResult{err: ErrNotFound}
}

func (b *Bridge) applyAdd(name string) intentResult {
	l, err := b.createLock(name)
	if err != nil {
		return intentResult{err: err}
	}

	now := time.Now()

	b.m.Lock()
	b.refreshIndicator(l, now)
	b.m.Unlock()

	return intentResult{slot: l.slot}
}

func (b *Bridge) applyRemove(slot int) intentResult {
	b.m.Lock()

	if slot < 0 || slot >= len(b.slots) || b.slots[slot] == nil {
		b.m.Unlock()
		return intentResult{err: ErrNotFound}
	}

	l := b.slots[slot]

	// Pending operation, identify overlay and blink timer all die with the
	// slot in this one step; nothing may fire for it afterwards.
	l.pendingDeadline = time.Time{}
	l.identifyUntil = time.Time{}
	b.stopBlink(l)
	l.pin.Set(false)
	l.level.Store(false)

	b.slots[slot] = nil
	b.m.Unlock()

	b.sectionRemoveLock(slot)

	d := &device{bridge: b, l: l}
	for _, c := range deviceCapabilities() {
		b.sendEvent(da.CapabilityRemoved{Device: d, Capability: c})
	}
	b.sendEvent(da.DeviceRemoved{Device: d})

	b.logger.LogInfo(b.ctx, "Lock removed from slot.", logwrap.Datum("Slot", slot), logwrap.Datum("Identifier", l.externalID.String()))

	return intentResult{slot: slot}
}

// applyUpdate runs fn against an active slot under the registry write lock,
// then refreshes the indicator, persists and republishes if fn changed
// anything.
func (b *Bridge) applyUpdate(slot int, fn func(time.Time, *lock) (bool, error)) intentResult {
	now := time.Now()

	b.m.Lock()

	if slot < 0 || slot >= len(b.slots) || b.slots[slot] == nil {
		b.m.Unlock()
		return intentResult{err: ErrNotFound}
	}

	l := b.slots[slot]

	changed, err := fn(now, l)

	var snap LockSnapshot
	if changed {
		b.refreshIndicator(l, now)
		b.persistLock(l)
		snap = b.snapshotLock(l, now)
	}

	b.m.Unlock()

	if changed {
		b.sendEvent(DoorLockUpdate{Device: b.deviceFor(l), State: statusFromSnapshot(snap)})
	}

	return intentResult{slot: slot, err: err}
}

func (b *Bridge) setTarget(now time.Time, l *lock, target LockState) (bool, error) {
	if l.state == Jammed {
		return false, ErrInvalidTransition
	}

	l.target = target
	l.pendingTarget = target
	l.pendingDeadline = now.Add(l.tuning.opDuration)
	l.state = UnknownState

	b.logger.LogInfo(b.ctx, "Lock operation started.", logwrap.Datum("Slot", l.slot), logwrap.Datum("Target", target.String()), logwrap.Datum("DurationMs", l.tuning.opDuration.Milliseconds()))

	return true, nil
}

func (b *Bridge) resolveOperation(now time.Time, l *lock, deadline time.Time) (bool, error) {
	// The scheduler may observe a deadline and race a retarget or remove;
	// a mismatch means this resolution is stale.
	if !l.pending() || !l.pendingDeadline.Equal(deadline) {
		return false, nil
	}

	l.pendingDeadline = time.Time{}

	switch b.outcomes.Next() {
	case outcomeJammed:
		l.state = Jammed
		l.fault = false
		b.logger.LogWarn(b.ctx, "Lock operation ended jammed.", logwrap.Datum("Slot", l.slot))
	case outcomeFault:
		l.state = UnknownState
		l.fault = true
		b.logger.LogWarn(b.ctx, "Lock operation ended in fault.", logwrap.Datum("Slot", l.slot))
	default:
		l.state = l.pendingTarget
		l.fault = false
		b.logger.LogInfo(b.ctx, "Lock operation complete.", logwrap.Datum("Slot", l.slot), logwrap.Datum("State", l.state.String()))
	}

	return true, nil
}

func (b *Bridge) forceJam(l *lock) (bool, error) {
	l.state = Jammed
	l.pendingDeadline = time.Time{}

	b.logger.LogWarn(b.ctx, "Lock jam forced.", logwrap.Datum("Slot", l.slot))

	return true, nil
}

func (b *Bridge) clearErrors(l *lock) (bool, error) {
	if l.state != Jammed && l.state != UnknownState {
		return false, nil
	}

	l.state = l.target
	l.fault = false
	l.pendingDeadline = time.Time{}

	b.logger.LogInfo(b.ctx, "Lock errors cleared.", logwrap.Datum("Slot", l.slot), logwrap.Datum("State", l.state.String()))

	return true, nil
}

func (b *Bridge) applyIdentify(slot int, duration time.Duration) intentResult {
	if duration <= 0 {
		duration = defaultIdentifyDuration
	}

	now := time.Now()

	b.m.Lock()

	if slot < 0 || slot >= len(b.slots) || b.slots[slot] == nil {
		b.m.Unlock()
		return intentResult{err: ErrNotFound}
	}

	l := b.slots[slot]
	l.identifyUntil = now.Add(duration)
	b.refreshIndicator(l, now)
	d := b.deviceFor(l)

	b.m.Unlock()

	b.sendEvent(capabilities.IdentifyUpdate{Device: d, State: capabilities.IdentifyState{
		Identifying: true,
		Remaining:   duration,
	}})

	return intentResult{slot: slot}
}

func (b *Bridge) applyIdentifyExpire(slot int, deadline time.Time) intentResult {
	now := time.Now()

	b.m.Lock()

	if slot < 0 || slot >= len(b.slots) || b.slots[slot] == nil {
		b.m.Unlock()
		return intentResult{err: ErrNotFound}
	}

	l := b.slots[slot]

	if l.identifyUntil.IsZero() || !l.identifyUntil.Equal(deadline) {
		b.m.Unlock()
		return intentResult{slot: slot}
	}

	l.identifyUntil = time.Time{}
	b.refreshIndicator(l, now)
	d := b.deviceFor(l)

	b.m.Unlock()

	b.sendEvent(capabilities.IdentifyUpdate{Device: d, State: capabilities.IdentifyState{}})

	return intentResult{slot: slot}
}
