package lockbridge

import (
	"context"
	"sync"
	"time"

	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/lockbridge/rules"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/persistence"
)

const (
	DefaultCapacity = 4
	MaximumCapacity = 8
)

// Bridge owns a bounded registry of simulated door locks and exposes them as
// da.Devices. All mutation flows through the intent loop; everything else
// only reads snapshots or enqueues.
type Bridge struct {
	capacity int
	section  persistence.Section
	logger   logwrap.Logger
	rules    *rules.Engine

	ctx       context.Context
	ctxCancel context.CancelFunc

	events  chan any
	intents chan intent

	m     *sync.RWMutex
	slots []*lock
	nonce uint32

	outcomes    outcomeDrawer
	resolution  time.Duration
	pinProvider func(slot int) IndicatorPin

	self da.BaseDevice
}

func New(capacity int, s persistence.Section) *Bridge {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > MaximumCapacity {
		capacity = MaximumCapacity
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		capacity: capacity,
		section:  s,
		logger:   logwrap.New(discard.Discard()),

		ctx:       ctx,
		ctxCancel: cancel,

		events:  make(chan any, eventBacklog),
		intents: make(chan intent, intentBacklog),

		m:     &sync.RWMutex{},
		slots: make([]*lock, capacity),

		outcomes:    newOutcomeSource(time.Now().UnixNano()),
		resolution:  defaultSchedulerResolution,
		pinProvider: func(int) IndicatorPin { return discardPin{} },
	}
}

// WithRules installs a compiled tuning rules engine, consulted when a lock is
// bound to a slot.
func (b *Bridge) WithRules(e *rules.Engine) {
	b.rules = e
}

// WithOutcomeSeed pins the operation outcome sequence.
func (b *Bridge) WithOutcomeSeed(seed int64) {
	b.outcomes = newOutcomeSource(seed)
}

// WithIndicatorPins installs the per-slot status indicator outputs.
func (b *Bridge) WithIndicatorPins(provider func(slot int) IndicatorPin) {
	b.pinProvider = provider
}

func (b *Bridge) Start() error {
	b.self = da.BaseDevice{
		DeviceGateway:      b,
		DeviceIdentifier:   ExternalID("lockbridge"),
		DeviceCapabilities: []da.Capability{},
	}

	b.loadFromPersistence()

	go b.intentLoop()
	go b.deadlineLoop()

	return nil
}

func (b *Bridge) Stop() error {
	b.ctxCancel()

	b.m.Lock()
	defer b.m.Unlock()

	for _, l := range b.slots {
		if l != nil {
			b.stopBlink(l)
			l.pin.Set(false)
			l.level.Store(false)
		}
	}

	return nil
}

func (b *Bridge) Capability(c da.Capability) interface{} {
	return nil
}

func (b *Bridge) Capabilities() []da.Capability {
	return deviceCapabilities()
}

func (b *Bridge) Self() da.Device {
	return b.self
}

func (b *Bridge) Devices() []da.Device {
	devices := []da.Device{b.self}

	for _, l := range b.getLocks() {
		devices = append(devices, b.deviceFor(l))
	}

	return devices
}

var _ da.Gateway = (*Bridge)(nil)

// AddLock binds a new simulated lock to the lowest free slot, returning its
// slot id.
func (b *Bridge) AddLock(ctx context.Context, name string) (int, error) {
	return b.enqueue(ctx, intent{kind: intentAddLock, name: name})
}

// RemoveLock retires a slot, cancelling its pending operation and indicator.
func (b *Bridge) RemoveLock(ctx context.Context, slot int) error {
	_, err := b.enqueue(ctx, intent{kind: intentRemoveLock, slot: slot})
	return err
}

// SetTarget requests a transition to Secured or Unsecured, resolved after the
// slot's simulated operation time.
func (b *Bridge) SetTarget(ctx context.Context, slot int, target LockState) error {
	if target != Secured && target != Unsecured {
		return ErrInvalidTransition
	}

	_, err := b.enqueue(ctx, intent{kind: intentSetTarget, slot: slot, target: target})
	return err
}

// ForceJam jams a lock immediately, cancelling any pending operation.
func (b *Bridge) ForceJam(ctx context.Context, slot int) error {
	_, err := b.enqueue(ctx, intent{kind: intentForceJam, slot: slot})
	return err
}

// ToggleLowBattery flips the low battery flag.
func (b *Bridge) ToggleLowBattery(ctx context.Context, slot int) error {
	_, err := b.enqueue(ctx, intent{kind: intentToggleLowBattery, slot: slot})
	return err
}

// ClearErrors recovers a jammed or unknown lock to its last requested target.
func (b *Bridge) ClearErrors(ctx context.Context, slot int) error {
	_, err := b.enqueue(ctx, intent{kind: intentClearErrors, slot: slot})
	return err
}

// Rename updates a lock's display label.
func (b *Bridge) Rename(ctx context.Context, slot int, name string) error {
	_, err := b.enqueue(ctx, intent{kind: intentRename, slot: slot, name: name})
	return err
}

// Identify overlays the rapid identification blink for the given duration,
// after which the indicator reverts to the state-derived pattern.
func (b *Bridge) Identify(ctx context.Context, slot int, duration time.Duration) error {
	_, err := b.enqueue(ctx, intent{kind: intentIdentify, slot: slot, duration: duration})
	return err
}
