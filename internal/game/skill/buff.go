package skill

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/geom"
)

// BuffType tags a buff so same-type instances can be counted and bounded.
type BuffType string

const (
	BuffIronWall    BuffType = "iron_wall"
	BuffRally       BuffType = "rallying_cry"
	BuffUndying     BuffType = "undying"
	BuffFrenzy      BuffType = "frenzy"
	BuffBlessing    BuffType = "blessing"
	BuffSanctuary   BuffType = "sanctuary"
	BuffPanicFreeze BuffType = "panic_freeze"
	BuffPanicInvert BuffType = "panic_invert"
	BuffCritStack   BuffType = "crit_stack"
	BuffWildRed     BuffType = "wild_card_red"
	BuffWildBlue    BuffType = "wild_card_blue"
)

// MaxCritStacks bounds concurrent BuffCritStack instances on one player.
const MaxCritStacks = 5

// Frenzy multiplier curve endpoints.
const (
	frenzyStart = 1.8
	frenzyLow   = 1.1
	frenzyPeak  = 2.4
)

// Buff is a timed modifier attached to exactly one player. Zero multipliers are
// neutral.
type Buff struct {
	Type      BuffType
	AppliedAt time.Time
	ExpiresAt time.Time

	DamageReduction       float64
	AttackMultiplier      float64
	CritRateBonus         float64
	DamageTakenMultiplier float64

	Invulnerable bool
	Frozen       bool
	Inverted     bool
}

func newBuff(t BuffType, now time.Time, d time.Duration) *Buff {
	return &Buff{Type: t, AppliedAt: now, ExpiresAt: now.Add(d)}
}

// Expired reports whether the buff has run out at now.
func (b *Buff) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

// Clone returns a copy re-anchored so it lasts as long as b from now.
func (b *Buff) Clone(now time.Time) *Buff {
	c := *b
	c.AppliedAt = now
	c.ExpiresAt = now.Add(b.ExpiresAt.Sub(b.AppliedAt))
	return &c
}

// Attack returns the outgoing-damage multiplier of the buff at now.
//
// Postcondition: Returns 1 for buffs without an attack modifier.
func (b *Buff) Attack(now time.Time) float64 {
	if b.Type == BuffFrenzy {
		return FrenzyMultiplier(b.AppliedAt, b.ExpiresAt, now)
	}
	if b.AttackMultiplier == 0 {
		return 1
	}
	return b.AttackMultiplier
}

// DamageTaken returns the incoming-damage multiplier of the buff.
func (b *Buff) DamageTaken() float64 {
	if b.DamageTakenMultiplier == 0 {
		return 1
	}
	return b.DamageTakenMultiplier
}

// FrenzyMultiplier decays linearly from 1.8 to 1.1 over the first half of the
// window, then grows linearly to 2.4 by its end.
func FrenzyMultiplier(start, end, now time.Time) float64 {
	total := end.Sub(start)
	if total <= 0 {
		return frenzyPeak
	}
	t := float64(now.Sub(start)) / float64(total)
	switch {
	case t <= 0:
		return frenzyStart
	case t < 0.5:
		return geom.Lerp(frenzyStart, frenzyLow, t/0.5)
	case t < 1:
		return geom.Lerp(frenzyLow, frenzyPeak, (t-0.5)/0.5)
	default:
		return frenzyPeak
	}
}
