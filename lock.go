package lockbridge

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shimmeringbee/da"
)

// LockState is the position of a simulated lock bolt. Jammed and Unknown are
// error conditions; only Unsecured and Secured are valid targets.
type LockState uint8

const (
	Unsecured LockState = iota
	Secured
	Jammed
	UnknownState
)

func (s LockState) String() string {
	switch s {
	case Unsecured:
		return "UNSECURED"
	case Secured:
		return "SECURED"
	case Jammed:
		return "JAMMED"
	default:
		return "UNKNOWN"
	}
}

// ExternalID is the opaque binding key protocol adapters use to address a
// lock. Assigned at creation, immutable for the lifetime of the slot binding.
type ExternalID string

func (e ExternalID) String() string {
	return string(e)
}

const maximumNameLength = 32

type lockTuning struct {
	opDuration     time.Duration
	jamPeriod      time.Duration
	identifyPeriod time.Duration
	batteryPeriod  time.Duration
}

type lock struct {
	// Immutable for the lifetime of the slot binding.
	slot       int
	externalID ExternalID
	tuning     lockTuning
	pin        IndicatorPin
	level      *atomic.Bool

	// Mutable, bridge registry lock must be held. Writes only happen on the
	// intent loop.
	name       string
	state      LockState
	target     LockState
	fault      bool
	lowBattery bool

	// A pending operation exists iff pendingDeadline is non-zero.
	pendingDeadline time.Time
	pendingTarget   LockState

	// Identify overlay, active while identifyUntil is in the future.
	identifyUntil time.Time

	pattern   *indicatorPattern
	blinkStop chan struct{}
	blinkDone chan struct{}
}

func (l *lock) pending() bool {
	return !l.pendingDeadline.IsZero()
}

func (l *lock) identifying(now time.Time) bool {
	return l.identifyUntil.After(now)
}

// LockSnapshot is a read-only copy of one slot, taken under the registry read
// lock for reporting and republishing.
type LockSnapshot struct {
	Slot        int
	Name        string
	ExternalID  string
	State       LockState
	Target      LockState
	Fault       bool
	LowBattery  bool
	Pending     bool
	Identifying bool
	Indicator   bool
}

func (b *Bridge) snapshotLock(l *lock, now time.Time) LockSnapshot {
	return LockSnapshot{
		Slot:        l.slot,
		Name:        l.name,
		ExternalID:  string(l.externalID),
		State:       l.state,
		Target:      l.target,
		Fault:       l.fault,
		LowBattery:  l.lowBattery,
		Pending:     l.pending(),
		Identifying: l.identifying(now),
		Indicator:   l.level.Load(),
	}
}

// device exposes one lock slot as a da.Device for the protocol layer.
type device struct {
	bridge *Bridge
	l      *lock
}

func (d *device) Gateway() da.Gateway {
	return d.bridge
}

func (d *device) Identifier() da.Identifier {
	return d.l.externalID
}

func (d *device) Capabilities() []da.Capability {
	return deviceCapabilities()
}

func (d *device) HasCapability(c da.Capability) bool {
	for _, pc := range deviceCapabilities() {
		if pc == c {
			return true
		}
	}

	return false
}

func (d *device) Capability(c da.Capability) da.BasicCapability {
	return d.bridge.capabilityFor(c, d.l)
}

var _ da.Device = (*device)(nil)

func (b *Bridge) deviceFor(l *lock) da.Device {
	return &device{bridge: b, l: l}
}

func (b *Bridge) nextExternalID(slot int) ExternalID {
	nonce := atomic.AddUint32(&b.nonce, 1)
	return ExternalID(fmt.Sprintf("lock-%02x-%04x", slot, nonce&0xffff))
}
