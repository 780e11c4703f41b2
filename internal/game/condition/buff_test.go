package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/corsair/internal/game/condition"
)

func brutalForce(turns int) condition.Buff {
	return condition.Buff{Name: "Brutal Force", Stat: condition.StatAttack, Magnitude: 0.10, TurnsRemaining: turns}
}

func TestSet_Apply_Appends(t *testing.T) {
	var s condition.Set
	refreshed, err := s.Apply(brutalForce(3))
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Len(t, s, 1)
	assert.True(t, s.Has("Brutal Force", condition.StatAttack))
}

func TestSet_Apply_RefreshesInsteadOfStacking(t *testing.T) {
	var s condition.Set
	_, err := s.Apply(brutalForce(1))
	require.NoError(t, err)
	refreshed, err := s.Apply(brutalForce(3))
	require.NoError(t, err)
	assert.True(t, refreshed)
	require.Len(t, s, 1)
	assert.Equal(t, 3, s[0].TurnsRemaining)
}

func TestSet_Apply_SameNameDifferentStatIsDistinct(t *testing.T) {
	var s condition.Set
	_, err := s.Apply(brutalForce(2))
	require.NoError(t, err)
	_, err = s.Apply(condition.Buff{Name: "Brutal Force", Stat: condition.StatDefense, Magnitude: 0.1, TurnsRemaining: 2})
	require.NoError(t, err)
	assert.Len(t, s, 2)
}

func TestSet_Apply_Rejects(t *testing.T) {
	var s condition.Set
	_, err := s.Apply(condition.Buff{Name: "", Stat: condition.StatAttack, TurnsRemaining: 1})
	assert.Error(t, err)
	_, err = s.Apply(condition.Buff{Name: "x", Stat: "luck", TurnsRemaining: 1})
	assert.Error(t, err)
	_, err = s.Apply(condition.Buff{Name: "x", Stat: condition.StatAttack, TurnsRemaining: 0})
	assert.Error(t, err)
	assert.Empty(t, s)
}

func TestSet_Tick_ExpiresAtZero(t *testing.T) {
	s := condition.Set{brutalForce(1), {Name: "Guard", Stat: condition.StatDefense, Magnitude: 0.5, TurnsRemaining: 2}}
	expired := s.Tick()
	require.Len(t, expired, 1)
	assert.Equal(t, "Brutal Force", expired[0].Name)
	require.Len(t, s, 1)
	assert.Equal(t, "Guard", s[0].Name)
	assert.Equal(t, 1, s[0].TurnsRemaining)
}

func TestSet_Bonus(t *testing.T) {
	s := condition.Set{
		{Name: "A", Stat: condition.StatAttack, Magnitude: 0.10, TurnsRemaining: 1},
		{Name: "B", Stat: condition.StatAttack, Magnitude: 0.15, TurnsRemaining: 1},
		{Name: "C", Stat: condition.StatDefense, Magnitude: 0.50, TurnsRemaining: 1},
	}
	assert.InDelta(t, 5.0, s.Bonus(condition.StatAttack, 20), 1e-9)
	assert.InDelta(t, 15.0, s.Effective(condition.StatDefense, 10), 1e-9)
	assert.InDelta(t, 0.0, s.Bonus(condition.StatAgility, 10), 1e-9)
}

func TestSet_Clone_IsIndependent(t *testing.T) {
	s := condition.Set{brutalForce(2)}
	c := s.Clone()
	c[0].TurnsRemaining = 9
	assert.Equal(t, 2, s[0].TurnsRemaining)
}

func TestPropertySet_NoDuplicatePairs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var s condition.Set
		n := rapid.IntRange(1, 30).Draw(rt, "n")
		for i := 0; i < n; i++ {
			name := rapid.SampledFrom([]string{"Guard", "Brutal Force", "Smoke Screen"}).Draw(rt, "name")
			stat := rapid.SampledFrom([]condition.Stat{condition.StatAttack, condition.StatDefense}).Draw(rt, "stat")
			turns := rapid.IntRange(1, 5).Draw(rt, "turns")
			_, err := s.Apply(condition.Buff{Name: name, Stat: stat, Magnitude: 0.1, TurnsRemaining: turns})
			require.NoError(rt, err)
			if rapid.Bool().Draw(rt, "tick") {
				s.Tick()
			}
		}
		seen := make(map[string]bool)
		for _, b := range s {
			key := b.Name + "/" + string(b.Stat)
			assert.False(rt, seen[key], "duplicate buff %s", key)
			seen[key] = true
			assert.Greater(rt, b.TurnsRemaining, 0)
		}
	})
}
