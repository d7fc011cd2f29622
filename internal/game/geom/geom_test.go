package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNorm_UnitOrZero(t *testing.T) {
	assert.Equal(t, Vec{}, Vec{}.Norm())
	assert.InDelta(t, 1.0, V(3, 4).Norm().Len(), 1e-12)
}

func TestRectClamp(t *testing.T) {
	w := Rect{Width: 100, Height: 50}
	assert.Equal(t, V(10, 10), w.Clamp(V(-5, -5), 10))
	assert.Equal(t, V(90, 40), w.Clamp(V(500, 500), 10))
	assert.Equal(t, V(50, 25), w.Clamp(V(50, 25), 10))
}

func TestRectClamp_NonFinite(t *testing.T) {
	w := Rect{Width: 100, Height: 50}
	assert.Equal(t, V(10, 10), w.Clamp(V(math.NaN(), math.NaN()), 10))
	assert.Equal(t, V(90, 10), w.Clamp(V(math.Inf(1), math.Inf(-1)), 10))
	assert.True(t, w.Clamp(V(math.NaN(), math.Inf(1)), 10).Finite())
}

func TestFinite(t *testing.T) {
	assert.True(t, V(1, -2).Finite())
	assert.False(t, V(math.NaN(), 0).Finite())
	assert.False(t, V(0, math.Inf(-1)).Finite())
}

func TestCirclesOverlap(t *testing.T) {
	assert.True(t, CirclesOverlap(V(0, 0), 5, V(10, 0), 5))
	assert.False(t, CirclesOverlap(V(0, 0), 5, V(10.01, 0), 5))
}

func TestSegmentDistance(t *testing.T) {
	a, b := V(0, 0), V(10, 0)
	assert.InDelta(t, 3.0, SegmentDistance(V(5, 3), a, b), 1e-12)
	assert.InDelta(t, 5.0, SegmentDistance(V(-3, 4), a, b), 1e-12)
	assert.InDelta(t, 5.0, SegmentDistance(V(13, 4), a, b), 1e-12)
	assert.InDelta(t, 5.0, SegmentDistance(V(3, 4), a, a), 1e-12)
}

func TestSegmentHitsCircle(t *testing.T) {
	assert.True(t, SegmentHitsCircle(V(0, 0), V(100, 0), 10, V(50, 20), 15))
	assert.False(t, SegmentHitsCircle(V(0, 0), V(100, 0), 10, V(50, 21), 15))
}

func TestClamp_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := Rect{Width: 1000, Height: 600}
		p := V(rapid.Float64Range(-5000, 5000).Draw(rt, "x"), rapid.Float64Range(-5000, 5000).Draw(rt, "y"))
		r := rapid.Float64Range(0, 50).Draw(rt, "r")
		c := w.Clamp(p, r)
		assert.GreaterOrEqual(rt, c.X, r)
		assert.LessOrEqual(rt, c.X, w.Width-r)
		assert.GreaterOrEqual(rt, c.Y, r)
		assert.LessOrEqual(rt, c.Y, w.Height-r)
	})
}

func TestFromAngle(t *testing.T) {
	v := FromAngle(math.Pi / 2)
	assert.InDelta(t, 0, v.X, 1e-12)
	assert.InDelta(t, 1, v.Y, 1e-12)
}

func TestLerp(t *testing.T) {
	assert.Equal(t, 10.0, Lerp(10, 20, -1))
	assert.Equal(t, 15.0, Lerp(10, 20, 0.5))
	assert.Equal(t, 20.0, Lerp(10, 20, 2))
}
