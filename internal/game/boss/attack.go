package boss

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/geom"
)

// AttackKind names a boss attack pattern.
type AttackKind string

const (
	AttackLaser           AttackKind = "laser"
	AttackAOE             AttackKind = "aoe"
	AttackExpandingCircle AttackKind = "expanding_circle"
)

// Attack is one telegraphed boss attack. It deals damage only while Active and to
// each player at most once.
type Attack struct {
	ID   string
	Kind AttackKind

	// Pos is the laser origin or the zone/circle centre.
	Pos       geom.Vec
	Angle     float64
	Length    float64
	Width     float64
	Radius    float64
	MaxRadius float64
	Damage    float64
	Active    bool

	SpawnedAt   time.Time
	ActivatesAt time.Time
	ExpiresAt   time.Time

	spin  float64
	hit   map[string]struct{}
	fired bool
}

// advance moves the attack through warning → active → expired. An attack whose
// whole active window fell between two updates is held active for one update so
// it is still resolved against players.
//
// Postcondition: Returns false once the attack has expired after being active.
func (a *Attack) advance(now time.Time, dt float64) bool {
	if !now.Before(a.ExpiresAt) && a.fired {
		return false
	}
	wasActive := a.Active
	a.Active = !now.Before(a.ActivatesAt)
	if a.Active {
		a.fired = true
	}
	switch a.Kind {
	case AttackLaser:
		if wasActive {
			a.Angle += a.spin * dt
		}
	case AttackExpandingCircle:
		grow := a.ActivatesAt.Sub(a.SpawnedAt)
		if a.Active || grow <= 0 {
			a.Radius = a.MaxRadius
		} else {
			a.Radius = geom.Lerp(0, a.MaxRadius, float64(now.Sub(a.SpawnedAt))/float64(grow))
		}
	}
	return true
}

// End returns the far end of a laser.
func (a *Attack) End() geom.Vec {
	return a.Pos.Add(geom.FromAngle(a.Angle).Scale(a.Length))
}

// Hits reports whether an active attack overlaps a circle at pos with radius r.
func (a *Attack) Hits(pos geom.Vec, r float64) bool {
	if !a.Active {
		return false
	}
	switch a.Kind {
	case AttackLaser:
		return geom.SegmentHitsCircle(a.Pos, a.End(), a.Width, pos, r)
	case AttackAOE, AttackExpandingCircle:
		return geom.CirclesOverlap(a.Pos, a.Radius, pos, r)
	}
	return false
}

// MarkHit records that playerID has been damaged by the attack.
//
// Postcondition: Returns false when playerID was already hit.
func (a *Attack) MarkHit(playerID string) bool {
	if a.hit == nil {
		a.hit = make(map[string]struct{})
	}
	if _, ok := a.hit[playerID]; ok {
		return false
	}
	a.hit[playerID] = struct{}{}
	return true
}
