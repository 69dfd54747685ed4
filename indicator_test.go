package lockbridge

import (
	"sync"
	"testing"
	"time"

	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/stretchr/testify/assert"
)

type recordingPin struct {
	m      sync.Mutex
	writes []bool
}

func (p *recordingPin) Set(on bool) {
	p.m.Lock()
	defer p.m.Unlock()

	p.writes = append(p.writes, on)
}

func (p *recordingPin) count() int {
	p.m.Lock()
	defer p.m.Unlock()

	return len(p.writes)
}

func (p *recordingPin) last() bool {
	p.m.Lock()
	defer p.m.Unlock()

	return len(p.writes) > 0 && p.writes[len(p.writes)-1]
}

func Test_patternFor(t *testing.T) {
	now := time.Now()

	tuning := lockTuning{
		jamPeriod:      defaultJamPeriod,
		identifyPeriod: defaultIdentifyPeriod,
		batteryPeriod:  defaultBatteryPeriod,
	}

	t.Run("jam outranks every other pattern", func(t *testing.T) {
		l := &lock{tuning: tuning, state: Jammed, lowBattery: true, identifyUntil: now.Add(time.Minute)}

		p := patternFor(l, now)
		assert.True(t, p.blink)
		assert.Equal(t, defaultJamPeriod, p.period)
	})

	t.Run("identify outranks low battery", func(t *testing.T) {
		l := &lock{tuning: tuning, state: Secured, lowBattery: true, identifyUntil: now.Add(time.Minute)}

		p := patternFor(l, now)
		assert.True(t, p.blink)
		assert.Equal(t, defaultIdentifyPeriod, p.period)
	})

	t.Run("expired identify falls through to low battery", func(t *testing.T) {
		l := &lock{tuning: tuning, state: Secured, lowBattery: true, identifyUntil: now.Add(-time.Minute)}

		p := patternFor(l, now)
		assert.True(t, p.blink)
		assert.Equal(t, defaultBatteryPeriod, p.period)
	})

	t.Run("healthy lock tracks state with a steady level", func(t *testing.T) {
		secured := patternFor(&lock{tuning: tuning, state: Secured}, now)
		assert.False(t, secured.blink)
		assert.True(t, secured.level)

		unsecured := patternFor(&lock{tuning: tuning, state: Unsecured}, now)
		assert.False(t, unsecured.blink)
		assert.False(t, unsecured.level)
	})
}

func Test_bridge_refreshIndicator(t *testing.T) {
	t.Run("steady output is applied exactly once per pattern change", func(t *testing.T) {
		pin := &recordingPin{}

		b := New(4, memory.New())
		b.WithIndicatorPins(func(int) IndicatorPin { return pin })

		l, _ := b.createLock("Front Door")

		now := time.Now()

		b.m.Lock()
		b.refreshIndicator(l, now)
		b.refreshIndicator(l, now)
		b.refreshIndicator(l, now)
		b.m.Unlock()

		assert.Equal(t, 1, pin.count())
		assert.False(t, pin.last())
		assert.False(t, l.level.Load())
	})

	t.Run("secured steady level drives the pin high", func(t *testing.T) {
		pin := &recordingPin{}

		b := New(4, memory.New())
		b.WithIndicatorPins(func(int) IndicatorPin { return pin })

		l, _ := b.createLock("Front Door")
		l.state = Secured

		b.m.Lock()
		b.refreshIndicator(l, time.Now())
		b.m.Unlock()

		assert.True(t, pin.last())
		assert.True(t, l.level.Load())
	})

	t.Run("jam blink toggles the pin until stopped", func(t *testing.T) {
		pin := &recordingPin{}

		b := New(4, memory.New())
		b.WithIndicatorPins(func(int) IndicatorPin { return pin })

		l, _ := b.createLock("Front Door")
		l.tuning.jamPeriod = time.Millisecond
		l.state = Jammed

		b.m.Lock()
		b.refreshIndicator(l, time.Now())
		b.m.Unlock()

		assert.Eventually(t, func() bool {
			return pin.count() >= 4
		}, time.Second, time.Millisecond)

		b.m.Lock()
		b.stopBlink(l)
		b.m.Unlock()
	})

	t.Run("clearing the jam swaps the blink back to steady", func(t *testing.T) {
		pin := &recordingPin{}

		b := New(4, memory.New())
		b.WithIndicatorPins(func(int) IndicatorPin { return pin })

		l, _ := b.createLock("Front Door")
		l.tuning.jamPeriod = time.Millisecond
		l.state = Jammed
		l.target = Secured

		b.m.Lock()
		b.refreshIndicator(l, time.Now())
		b.m.Unlock()

		_ = b.apply(intent{kind: intentClearErrors, slot: 0})

		assert.Equal(t, Secured, l.state)
		assert.Nil(t, l.blinkStop)
		assert.True(t, l.level.Load())
	})
}
