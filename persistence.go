package lockbridge

import (
	"strconv"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/persistence"
)

const lockSectionRoot = "lock"

const (
	nameKey       = "Name"
	externalIDKey = "ExternalID"
	stateKey      = "State"
	lowBatteryKey = "LowBattery"
)

func (b *Bridge) sectionForLock(slot int) persistence.Section {
	return b.section.Section(lockSectionRoot, strconv.Itoa(slot))
}

func (b *Bridge) sectionRemoveLock(slot int) bool {
	return b.section.Section(lockSectionRoot).SectionDelete(strconv.Itoa(slot))
}

// persistLock stores the durable part of a record: name, binding key, rest
// state and battery flag. Pending operations and identify overlays are
// transient and never persisted.
func (b *Bridge) persistLock(l *lock) {
	s := b.sectionForLock(l.slot)

	s.Set(nameKey, l.name)
	s.Set(externalIDKey, string(l.externalID))
	s.Set(stateKey, int(l.state))
	s.Set(lowBatteryKey, l.lowBattery)
}

func (b *Bridge) loadFromPersistence() {
	ctx, end := b.logger.Segment(b.ctx, "Loading persisted locks.")
	defer end()

	s := b.section.Section(lockSectionRoot)

	for _, k := range s.SectionKeys() {
		slot, err := strconv.Atoi(k)
		if err != nil || slot < 0 || slot >= len(b.slots) {
			b.logger.LogWarn(ctx, "Ignoring persisted lock with invalid slot.", logwrap.Datum("Section", k))
			continue
		}

		ls := s.Section(k)

		name, _ := ls.String(nameKey)
		externalID, ok := ls.String(externalIDKey)
		if !ok {
			b.logger.LogWarn(ctx, "Ignoring persisted lock without binding key.", logwrap.Datum("Slot", slot))
			continue
		}

		state, _ := ls.Int(stateKey, int(Unsecured))
		lowBattery, _ := ls.Bool(lowBatteryKey)

		l := b.restoreLock(slot, ExternalID(externalID), name, LockState(state), lowBattery)

		b.m.Lock()
		b.refreshIndicator(l, time.Now())
		b.m.Unlock()

		b.logger.LogInfo(ctx, "Restored lock from persistence.", logwrap.Datum("Slot", slot), logwrap.Datum("Name", name), logwrap.Datum("State", l.state.String()))
	}
}
