package player

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/geom"
)

// ProjectileKind distinguishes basic attacks.
type ProjectileKind string

const (
	Melee  ProjectileKind = "melee"
	Ranged ProjectileKind = "ranged"
)

const (
	meleeCooldown  = 450 * time.Millisecond
	meleeReach     = 40
	meleeRadius    = 45
	meleeLifetime  = 120 * time.Millisecond
	meleeDamage    = 10
	rangedCooldown = 700 * time.Millisecond
	rangedSpeed    = 620
	rangedRadius   = 10
	rangedLifetime = 1500 * time.Millisecond
	rangedDamage   = 7
)

// Projectile is a basic attack owned by the player that fired it. Damage is the
// base value before the owner's stats are applied.
type Projectile struct {
	ID        string
	OwnerID   string
	Kind      ProjectileKind
	Pos       geom.Vec
	Vel       geom.Vec
	Damage    float64
	Radius    float64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the projectile has run out at now.
func (p *Projectile) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
