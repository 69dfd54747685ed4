package lockbridge

import "time"

// The deadline scheduler is the single owner of every pending operation and
// identify expiry. It never mutates a lock itself; due deadlines are fed back
// through the intent queue as synthetic intents.
const defaultSchedulerResolution = 50 * time.Millisecond

func (b *Bridge) deadlineLoop() {
	t := time.NewTicker(b.resolution)
	defer t.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case now := <-t.C:
			b.scanDeadlines(now)
		}
	}
}

func (b *Bridge) scanDeadlines(now time.Time) {
	b.m.RLock()

	var due []intent

	for _, l := range b.slots {
		if l == nil {
			continue
		}

		if l.pending() && !now.Before(l.pendingDeadline) {
			due = append(due, intent{kind: intentResolveOperation, slot: l.slot, deadline: l.pendingDeadline})
		}

		if !l.identifyUntil.IsZero() && !now.Before(l.identifyUntil) {
			due = append(due, intent{kind: intentIdentifyExpire, slot: l.slot, deadline: l.identifyUntil})
		}
	}

	b.m.RUnlock()

	for _, i := range due {
		// Synthetic intents are idempotent against their observed deadline,
		// and a full queue re-fires on the next tick, so never block here.
		select {
		case b.intents <- i:
		default:
		}
	}
}
