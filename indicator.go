package lockbridge

import "time"

// IndicatorPin is the output a lock's status indicator drives, one per slot.
type IndicatorPin interface {
	Set(on bool)
}

type discardPin struct{}

func (discardPin) Set(bool) {}

type indicatorPattern struct {
	blink  bool
	period time.Duration

	// Steady output level when blink is false.
	level bool
}

// patternFor derives the indicator pattern from a lock's flags. Priority,
// highest first: jammed, identify overlay, low battery, steady state.
func patternFor(l *lock, now time.Time) indicatorPattern {
	switch {
	case l.state == Jammed:
		return indicatorPattern{blink: true, period: l.tuning.jamPeriod}
	case l.identifying(now):
		return indicatorPattern{blink: true, period: l.tuning.identifyPeriod}
	case l.lowBattery:
		return indicatorPattern{blink: true, period: l.tuning.batteryPeriod}
	default:
		return indicatorPattern{level: l.state == Secured}
	}
}

// refreshIndicator reconciles a lock's indicator with its current flags.
// Registry write lock must be held. A steady output is applied exactly once;
// a blink change swaps the periodic toggle for a new one. Each lock blinks on
// its own timer, phases are not synchronised across slots.
func (b *Bridge) refreshIndicator(l *lock, now time.Time) {
	p := patternFor(l, now)

	if l.pattern != nil && *l.pattern == p {
		return
	}

	b.stopBlink(l)
	l.pattern = &p

	if p.blink {
		b.startBlink(l, p)
		return
	}

	l.pin.Set(p.level)
	l.level.Store(p.level)
}

func (b *Bridge) startBlink(l *lock, p indicatorPattern) {
	stop := make(chan struct{})
	done := make(chan struct{})
	l.blinkStop = stop
	l.blinkDone = done

	// The toggler only touches the pin and its own phase; lock state stays
	// with the intent loop.
	pin, level := l.pin, l.level

	go func() {
		defer close(done)

		t := time.NewTicker(p.period)
		defer t.Stop()

		on := false

		for {
			select {
			case <-stop:
				return
			case <-t.C:
				on = !on
				pin.Set(on)
				level.Store(on)
			}
		}
	}()
}

// stopBlink waits for the toggler to exit, so a steady level applied
// afterwards cannot be overwritten by a late toggle.
func (b *Bridge) stopBlink(l *lock) {
	if l.blinkStop != nil {
		close(l.blinkStop)
		<-l.blinkDone
		l.blinkStop = nil
		l.blinkDone = nil
	}
}
