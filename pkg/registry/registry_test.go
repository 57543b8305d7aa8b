package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	ID string
}

func TestRegisterAndGet(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	require.NoError(t, reg.Register("a", testItem{ID: "a"}))

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegisterDuplicateFails(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	require.NoError(t, reg.Register("a", testItem{ID: "a"}))
	assert.Error(t, reg.Register("a", testItem{ID: "other"}))
}

func TestSetUpserts(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	reg.Set("a", testItem{ID: "v1"})
	reg.Set("a", testItem{ID: "v2"})

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "v2", got.ID)
	assert.Equal(t, 1, reg.Count())
}

func TestNamesSorted(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, reg.Register(name, testItem{ID: name}))
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, reg.Names())
}

func TestRemove(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	require.NoError(t, reg.Register("a", testItem{ID: "a"}))
	require.NoError(t, reg.Remove("a"))
	assert.Error(t, reg.Remove("a"))
	assert.Equal(t, 0, reg.Count())
}

func TestClear(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	reg.Set("a", testItem{ID: "a"})
	reg.Set("b", testItem{ID: "b"})
	reg.Clear()
	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, reg.List())
}
