package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"trackamole/internal/models"
)

func TestStore_SelectNotifiesOnChangeOnly(t *testing.T) {
	s := New(models.VariantMale)
	var got []Snapshot
	s.Subscribe(func(_, next Snapshot) { got = append(got, next) })

	s.Select(4)
	s.Select(4)
	s.Deselect()

	require.Len(t, got, 2)
	assert.EqualValues(t, 4, got[0].Selected)
	assert.True(t, got[0].HasSelection())
	assert.False(t, got[1].HasSelection())
}

func TestStore_SetVariantClearsSelection(t *testing.T) {
	s := New(models.VariantMale)
	s.Select(2)
	s.SetAdding(true)
	s.SetPending(r3.Vec{X: 1})

	s.SetVariant(models.VariantFemale)
	cur := s.Get()
	assert.Equal(t, models.VariantFemale, cur.Variant)
	assert.Zero(t, cur.Selected)
	assert.Nil(t, cur.Pending)
	assert.True(t, cur.Adding)
}

func TestStore_PendingLifecycle(t *testing.T) {
	s := New(models.VariantFemale)
	calls := 0
	s.Subscribe(func(_, _ Snapshot) { calls++ })

	s.SetAdding(true)
	s.SetPending(r3.Vec{X: 0.1, Y: 1})
	s.SetPending(r3.Vec{X: 0.1, Y: 1})
	require.NotNil(t, s.Get().Pending)
	assert.Equal(t, r3.Vec{X: 0.1, Y: 1}, *s.Get().Pending)

	s.SetAdding(false)
	assert.Nil(t, s.Get().Pending)
	assert.Equal(t, 3, calls)
}

func TestStore_UnsubscribeAndPrev(t *testing.T) {
	s := New(models.VariantMale)
	var prevs []int64
	cancel := s.Subscribe(func(prev, _ Snapshot) { prevs = append(prevs, prev.Selected) })
	s.Select(1)
	s.Select(2)
	cancel()
	s.Select(3)
	assert.Equal(t, []int64{0, 1}, prevs)
}

func TestStore_ListenerMayReenter(t *testing.T) {
	s := New(models.VariantMale)
	s.Subscribe(func(_, next Snapshot) {
		if next.Selected == 1 {
			s.SetAdding(false)
			_ = s.Get()
		}
	})
	assert.NotPanics(t, func() { s.Select(1) })
}
