// Package geom provides the 2D vector math and the circle/segment intersection
// tests used for collision detection.
package geom

import "math"

// Vec is a 2D point or direction in world units.
type Vec struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// V is shorthand for Vec{X: x, Y: y}.
func V(x, y float64) Vec { return Vec{X: x, Y: y} }

// Add returns v + o.
func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }

// Scale returns v * k.
func (v Vec) Scale(k float64) Vec { return Vec{v.X * k, v.Y * k} }

// Dot returns the dot product of v and o.
func (v Vec) Dot(o Vec) float64 { return v.X*o.X + v.Y*o.Y }

// Len returns the Euclidean length of v.
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the distance between v and o.
func (v Vec) Dist(o Vec) float64 { return v.Sub(o).Len() }

// Finite reports whether both components are neither NaN nor infinite.
func (v Vec) Finite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// IsZero reports whether v is the zero vector.
func (v Vec) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Norm returns v scaled to unit length, or the zero vector when v is zero.
//
// Postcondition: Norm().Len() is 1 or 0.
func (v Vec) Norm() Vec {
	l := v.Len()
	if l == 0 {
		return Vec{}
	}
	return Vec{v.X / l, v.Y / l}
}

// Angle returns the heading of v in radians.
func (v Vec) Angle() float64 { return math.Atan2(v.Y, v.X) }

// FromAngle returns the unit vector for heading a.
func FromAngle(a float64) Vec { return Vec{math.Cos(a), math.Sin(a)} }

// Rect is an axis-aligned world rectangle anchored at the origin.
type Rect struct {
	Width  float64
	Height float64
}

// Clamp returns p constrained so that a circle of radius r stays inside the rectangle.
// NaN maps to the lower bound and infinities to the nearer bound.
//
// Postcondition: r <= X <= Width-r and r <= Y <= Height-r when the rectangle is large enough.
func (w Rect) Clamp(p Vec, r float64) Vec {
	return Vec{clamp(p.X, r, w.Width-r), clamp(p.Y, r, w.Height-r)}
}

// Contains reports whether p lies inside the rectangle.
func (w Rect) Contains(p Vec) bool {
	return p.X >= 0 && p.X <= w.Width && p.Y >= 0 && p.Y <= w.Height
}

// Center returns the midpoint of the rectangle.
func (w Rect) Center() Vec { return Vec{w.Width / 2, w.Height / 2} }

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// CirclesOverlap reports whether two circles intersect or touch.
func CirclesOverlap(a Vec, ra float64, b Vec, rb float64) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	rr := ra + rb
	return dx*dx+dy*dy <= rr*rr
}

// SegmentDistance returns the shortest distance from p to the segment a-b.
func SegmentDistance(p, a, b Vec) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Dist(a)
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Dist(a.Add(ab.Scale(t)))
}

// SegmentHitsCircle reports whether a segment of the given thickness touches a circle.
func SegmentHitsCircle(a, b Vec, thickness float64, c Vec, r float64) bool {
	return SegmentDistance(c, a, b) <= thickness/2+r
}

// Lerp interpolates between a and b by t, clamping t to [0, 1].
func Lerp(a, b, t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	return a + (b-a)*t
}
