package mqttpub

import (
	"encoding/json"
	"testing"

	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/stretchr/testify/assert"

	"github.com/shimmeringbee/lockbridge"
)

func TestParseTarget(t *testing.T) {
	t.Run("maps command payloads to rest states", func(t *testing.T) {
		for payload, expected := range map[string]lockbridge.LockState{
			"SECURED":    lockbridge.Secured,
			"secured":    lockbridge.Secured,
			"LOCK":       lockbridge.Secured,
			"LOCKED":     lockbridge.Secured,
			" secured\n": lockbridge.Secured,
			"UNSECURED":  lockbridge.Unsecured,
			"unlock":     lockbridge.Unsecured,
			"UNLOCKED":   lockbridge.Unsecured,
		} {
			target, ok := ParseTarget(payload)
			assert.True(t, ok, payload)
			assert.Equal(t, expected, target, payload)
		}
	})

	t.Run("rejects everything else", func(t *testing.T) {
		for _, payload := range []string{"", "JAMMED", "UNKNOWN", "toggle", "1"} {
			_, ok := ParseTarget(payload)
			assert.False(t, ok, payload)
		}
	})
}

func TestPublisher_topic(t *testing.T) {
	t.Run("builds prefixed per lock topics", func(t *testing.T) {
		b := lockbridge.New(4, memory.New())
		p := New(b, nil, "home/locks")

		assert.Equal(t, "home/locks/lock-00-0001/set", p.topic("lock-00-0001", "set"))
		assert.Equal(t, "home/locks/lock-00-0001/state", p.topic("lock-00-0001", "state"))
	})

	t.Run("defaults the prefix when unset", func(t *testing.T) {
		b := lockbridge.New(4, memory.New())
		p := New(b, nil, "")

		assert.Equal(t, "lockbridge/id/state", p.topic("id", "state"))
	})
}

func TestStatePayload(t *testing.T) {
	t.Run("serialises with stable field names", func(t *testing.T) {
		payload, err := json.Marshal(StatePayload{
			Name:       "Front Door",
			State:      lockbridge.Secured.String(),
			Target:     lockbridge.Secured.String(),
			LowBattery: true,
		})
		assert.NoError(t, err)

		assert.JSONEq(t, `{
			"name": "Front Door",
			"state": "SECURED",
			"target": "SECURED",
			"fault": false,
			"low_battery": true,
			"pending": false
		}`, string(payload))
	})
}
