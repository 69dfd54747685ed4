package lockbridge

import (
	"testing"

	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/stretchr/testify/assert"
)

func Test_LockState_String(t *testing.T) {
	assert.Equal(t, "UNSECURED", Unsecured.String())
	assert.Equal(t, "SECURED", Secured.String())
	assert.Equal(t, "JAMMED", Jammed.String())
	assert.Equal(t, "UNKNOWN", UnknownState.String())
	assert.Equal(t, "UNKNOWN", LockState(200).String())
}

func Test_bridge_nextExternalID(t *testing.T) {
	t.Run("identifiers embed the slot and never repeat", func(t *testing.T) {
		b := New(4, memory.New())

		seen := map[ExternalID]bool{}

		for i := 0; i < 100; i++ {
			id := b.nextExternalID(2)
			assert.Contains(t, id.String(), "lock-02-")
			assert.False(t, seen[id])
			seen[id] = true
		}
	})
}
