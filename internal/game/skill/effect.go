package skill

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/geom"
)

// EffectType names the skill that produced an effect; clients render by it.
type EffectType string

const (
	EffectArcaneBolt    EffectType = "arcane_bolt"
	EffectSunbeam       EffectType = "sunbeam"
	EffectMeteor        EffectType = "meteor"
	EffectBlink         EffectType = "blink"
	EffectShieldSlam    EffectType = "shield_slam"
	EffectIronWall      EffectType = "iron_wall"
	EffectEarthshatter  EffectType = "earthshatter"
	EffectRallyingCry   EffectType = "rallying_cry"
	EffectBloodNova     EffectType = "blood_nova"
	EffectUndying       EffectType = "undying"
	EffectCarnage       EffectType = "carnage"
	EffectRend          EffectType = "rend"
	EffectMendingCircle EffectType = "mending_circle"
	EffectBlessing      EffectType = "blessing"
	EffectSanctuary     EffectType = "sanctuary"
	EffectRadiantOrb    EffectType = "radiant_orb"
	EffectQuickdraw     EffectType = "quickdraw"
	EffectWildCard      EffectType = "wild_card"
	EffectBulletStorm   EffectType = "bullet_storm"
	EffectSmokeRoll     EffectType = "smoke_roll"
)

// Kind selects the collision rule the room applies to an effect.
type Kind int

const (
	// KindVisual never collides.
	KindVisual Kind = iota
	// KindArea damages the boss inside its (possibly growing) radius.
	KindArea
	// KindProjectile damages the boss on contact and is removed.
	KindProjectile
	// KindBeam damages the boss once if its segment crosses the boss circle.
	KindBeam
	// KindHealOrDamage heals the first non-owner player it touches, otherwise
	// damages the boss; removed on either.
	KindHealOrDamage
	// KindApplication heals and buffs every player inside once, then is removed.
	KindApplication
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindArea:
		return "area"
	case KindProjectile:
		return "projectile"
	case KindBeam:
		return "beam"
	case KindHealOrDamage:
		return "heal_or_damage"
	case KindApplication:
		return "application"
	default:
		return "visual"
	}
}

// Effect is a declarative skill consequence. A resolver creates it; from then on
// only the room reads and mutates it.
type Effect struct {
	ID        string
	OwnerID   string
	Character character.ID
	Slot      Slot
	Type      EffectType
	Kind      Kind

	Pos         geom.Vec
	Vel         geom.Vec
	Radius      float64
	StartRadius float64
	MaxRadius   float64
	Angle       float64
	Length      float64
	Width       float64
	FollowOwner bool

	CreatedAt time.Time
	ExpiresAt time.Time

	// Amount is damage when positive and healing when negative. Heal-or-damage
	// effects use its magnitude for both.
	Amount      float64
	Stacks      int
	Buff        *Buff
	HitInterval time.Duration

	// Room bookkeeping.
	LastHit time.Time
	HitBoss bool
	Done    bool
}

// Expired reports whether the effect has run out at now.
func (e *Effect) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Progress returns the elapsed share of the effect lifetime in [0, 1].
func (e *Effect) Progress(now time.Time) float64 {
	total := e.ExpiresAt.Sub(e.CreatedAt)
	if total <= 0 {
		return 1
	}
	p := float64(now.Sub(e.CreatedAt)) / float64(total)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// RadiusAt returns the collision radius at now, interpolating from StartRadius to
// MaxRadius for expanding effects.
func (e *Effect) RadiusAt(now time.Time) float64 {
	if e.MaxRadius <= e.StartRadius {
		return e.Radius
	}
	return geom.Lerp(e.StartRadius, e.MaxRadius, e.Progress(now))
}

// BeamEnd returns the far end of a beam effect.
func (e *Effect) BeamEnd() geom.Vec {
	return e.Pos.Add(geom.FromAngle(e.Angle).Scale(e.Length))
}

// CanHit reports whether a repeating effect may hit the boss again at now.
func (e *Effect) CanHit(now time.Time) bool {
	if e.HitInterval <= 0 {
		return !e.HitBoss
	}
	return !e.HitBoss || !now.Before(e.LastHit.Add(e.HitInterval))
}

// MarkHit records a boss hit at now.
func (e *Effect) MarkHit(now time.Time) {
	e.HitBoss = true
	e.LastHit = now
}

func newEffect(c Cast, id character.ID, slot Slot, t EffectType, k Kind, life time.Duration) *Effect {
	return &Effect{
		OwnerID:   c.OwnerID,
		Character: id,
		Slot:      slot,
		Type:      t,
		Kind:      k,
		Pos:       c.Self,
		CreatedAt: c.Now,
		ExpiresAt: c.Now.Add(life),
	}
}

// projectile returns an effect moving from the caster toward the cast target.
func projectile(c Cast, id character.ID, slot Slot, t EffectType, k Kind, speed, radius float64, life time.Duration) *Effect {
	e := newEffect(c, id, slot, t, k, life)
	dir := c.heading()
	e.Vel = dir.Scale(speed)
	e.Angle = dir.Angle()
	e.Radius = radius
	return e
}

// area returns a circle at pos growing from start to max over its lifetime; equal
// radii give a fixed circle.
func area(c Cast, id character.ID, slot Slot, t EffectType, k Kind, pos geom.Vec, start, max float64, life time.Duration) *Effect {
	e := newEffect(c, id, slot, t, k, life)
	e.Pos = pos
	e.Radius = start
	e.StartRadius = start
	e.MaxRadius = max
	return e
}

// teleport returns the point at most maxDist from the caster toward the aim.
func teleport(c Cast, maxDist float64) geom.Vec {
	d := c.Aim.Sub(c.Self)
	if d.Len() <= maxDist {
		return c.Aim
	}
	return c.Self.Add(d.Norm().Scale(maxDist))
}
