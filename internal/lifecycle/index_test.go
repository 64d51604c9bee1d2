package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveIndex(t *testing.T) {
	key := LineKey{Site: "ОМЕТ", LineSection: "ОМЕТ1"}

	t.Run("set and resolve", func(t *testing.T) {
		idx := NewActiveIndex()
		_, ok := idx.Resolve(key)
		assert.False(t, ok)

		idx.Set(key, "Механика")
		reason, ok := idx.Resolve(key)
		assert.True(t, ok)
		assert.Equal(t, "Механика", reason)
	})

	t.Run("overwrite replaces reason", func(t *testing.T) {
		idx := NewActiveIndex()
		idx.Set(key, "Механика")
		idx.Set(key, "КИП")

		reason, ok := idx.Resolve(key)
		assert.True(t, ok)
		assert.Equal(t, "КИП", reason)
		assert.Len(t, idx.Snapshot(), 1)
	})

	t.Run("stale close leaves newer entry", func(t *testing.T) {
		idx := NewActiveIndex()
		idx.Set(key, "Механика")
		idx.Set(key, "КИП")

		assert.False(t, idx.ClearIf(key, "Механика"))
		_, ok := idx.Resolve(key)
		assert.True(t, ok, "newer entry survives the stale close")

		assert.True(t, idx.ClearIf(key, "КИП"))
		_, ok = idx.Resolve(key)
		assert.False(t, ok)
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		idx := NewActiveIndex()
		idx.Set(key, "Механика")

		snap := idx.Snapshot()
		delete(snap, key)

		_, ok := idx.Resolve(key)
		assert.True(t, ok)
	})
}
