package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/raid/internal/game/dice"
)

// TestCryptoSource_Intn_InRange verifies the postcondition:
// every value returned by Intn(6) is in [0, 6).
func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

// TestCryptoSource_Intn_PanicsOnZero verifies the precondition:
// Intn panics when called with n <= 0.
func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

func TestCryptoSource_Float64_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestSeededSource_Deterministic(t *testing.T) {
	a := dice.NewSeededSource(42)
	b := dice.NewSeededSource(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Intn(1000), b.Intn(1000))
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestFixedSource_ReplaysAndRepeatsLast(t *testing.T) {
	src := &dice.FixedSource{Ints: []int{3, 7}, Floats: []float64{0.25}}
	assert.Equal(t, 3, src.Intn(10))
	assert.Equal(t, 7, src.Intn(10))
	assert.Equal(t, 7, src.Intn(10))
	assert.Equal(t, 2, src.Intn(5))
	assert.Equal(t, 0.25, src.Float64())
	assert.Equal(t, 0.25, src.Float64())
}

func TestChance_Bounds(t *testing.T) {
	src := &dice.FixedSource{Floats: []float64{0.999}}
	assert.False(t, dice.Chance(src, 0))
	assert.True(t, dice.Chance(src, 1))
	assert.False(t, dice.Chance(src, 0.5))
}

func TestWeighted_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		weights := rapid.SliceOfN(rapid.IntRange(0, 50), 1, 8).Draw(rt, "weights")
		weights[0]++ // ensure a positive total
		seed := rapid.Uint64().Draw(rt, "seed")
		idx := dice.Weighted(dice.NewSeededSource(seed), weights)
		assert.GreaterOrEqual(rt, idx, 0)
		assert.Less(rt, idx, len(weights))
		assert.Positive(rt, weights[idx], "zero-weight entries must never be chosen")
	})
}

func TestWeighted_PanicsOnZeroTotal(t *testing.T) {
	assert.Panics(t, func() { dice.Weighted(dice.NewSeededSource(1), []int{0, 0}) })
}

func TestBetween_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lo := rapid.Float64Range(-100, 100).Draw(rt, "lo")
		span := rapid.Float64Range(0, 100).Draw(rt, "span")
		v := dice.Between(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), lo, lo+span)
		assert.GreaterOrEqual(rt, v, lo)
		assert.LessOrEqual(rt, v, lo+span)
	})
}

func TestLoggedSource_PassesThrough(t *testing.T) {
	inner := &dice.FixedSource{Ints: []int{4}, Floats: []float64{0.5}}
	src := dice.NewLoggedSource(inner, zap.NewNop())
	assert.Equal(t, 4, src.Intn(6))
	assert.Equal(t, 0.5, src.Float64())
}
