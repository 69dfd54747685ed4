package lockbridge

import (
	"context"
	"time"
)

// Intents serialise every mutation of the registry through a single consumer
// loop. Producers (console, protocol adapters, the deadline scheduler) only
// ever enqueue; the loop is the sole writer.
type intentKind int

const (
	intentAddLock intentKind = iota
	intentRemoveLock
	intentSetTarget
	intentResolveOperation
	intentForceJam
	intentToggleLowBattery
	intentClearErrors
	intentRename
	intentIdentify
	intentIdentifyExpire
)

type intent struct {
	kind   intentKind
	slot   int
	name   string
	target LockState

	// Identify overlay duration.
	duration time.Duration

	// Deadline the scheduler observed when it raised a synthetic intent. A
	// stale deadline means the operation was already resolved or replaced,
	// and the intent is dropped.
	deadline time.Time

	reply chan intentResult
}

type intentResult struct {
	slot int
	err  error
}

const intentBacklog = 64

// enqueue submits an intent and waits for the consumer loop to apply it.
func (b *Bridge) enqueue(ctx context.Context, i intent) (int, error) {
	i.reply = make(chan intentResult, 1)

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	select {
	case b.intents <- i:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-b.ctx.Done():
		return 0, b.ctx.Err()
	}

	select {
	case r := <-i.reply:
		return r.slot, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-b.ctx.Done():
		return 0, b.ctx.Err()
	}
}

func (b *Bridge) intentLoop() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case i := <-b.intents:
			r := b.apply(i)

			if i.reply != nil {
				i.reply <- r
			}
		}
	}
}
