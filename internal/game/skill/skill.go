// Package skill resolves character skill activations into declarative effects.
//
// A Resolver decides whether an activation succeeds and, if so, describes its
// consequences as a Result: resource costs, an optional Effect for the room to own,
// an optional Buff for the caster, and flags for the room to act on. Resolvers never
// touch boss or other-player state and are stateful only in their own cooldowns
// and stack counters.
package skill

import (
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/geom"
)

// Slot identifies one of a character's four activations.
type Slot string

const (
	SlotSkill1     Slot = "skill1"
	SlotSkill2     Slot = "skill2"
	SlotUltimate   Slot = "ultimate"
	SlotRightClick Slot = "right_click"
)

// Slots lists every activation slot in display order.
var Slots = []Slot{SlotSkill1, SlotSkill2, SlotUltimate, SlotRightClick}

// Validation rejections. A Result carrying one of these has OK == false and no other
// meaningful fields.
var (
	ErrOnCooldown       = errors.New("skill on cooldown")
	ErrInsufficientMana = errors.New("insufficient mana")
	ErrInsufficientHP   = errors.New("insufficient hp")
	ErrOutOfRange       = errors.New("target out of range")
	ErrNoTarget         = errors.New("skill requires a target point")
	ErrUnknownSlot      = errors.New("unknown skill slot")
	ErrUnknownCharacter = errors.New("unknown character")
)

// Cast is the caster's view of the world at activation time.
type Cast struct {
	Now     time.Time
	OwnerID string
	Self    geom.Vec
	Aim     geom.Vec
	HasAim  bool
	Boss    geom.Vec

	HP           float64
	MaxHP        float64
	Mana         float64
	MaxMana      float64
	Attack       float64
	Invulnerable bool
}

// target returns the aim point, falling back to the boss position.
func (c Cast) target() geom.Vec {
	if c.HasAim {
		return c.Aim
	}
	return c.Boss
}

// heading returns the unit direction from the caster toward the target, or +X when
// the caster stands on the target.
func (c Cast) heading() geom.Vec {
	d := c.target().Sub(c.Self).Norm()
	if d.IsZero() {
		return geom.V(1, 0)
	}
	return d
}

// Result is the all-or-nothing outcome of an activation.
type Result struct {
	OK  bool
	Err error

	ManaCost float64
	HPCost   float64

	Effect     *Effect
	Buff       *Buff
	SelfDebuff *Buff

	StunBoss time.Duration
	SlowBoss time.Duration
	Teleport *geom.Vec
}

func reject(err error) Result {
	return Result{Err: err}
}

// Tick carries the per-tick bookkeeping inputs for a resolver.
type Tick struct {
	Now time.Time
	Pos geom.Vec
}

// Cooldowns maps each slot to its remaining cooldown fraction in [0, 1].
type Cooldowns map[Slot]float64

// Resolver is the per-character skill strategy chosen once at player creation.
type Resolver interface {
	Character() character.ID
	Skill1(c Cast) Result
	Skill2(c Cast) Result
	Ultimate(c Cast) Result
	RightClick(c Cast) Result
	// Update performs per-tick bookkeeping: stack decay, stack expiry.
	Update(t Tick)
	Cooldowns(now time.Time) Cooldowns
}

// Use dispatches slot to the matching Resolver method.
//
// Postcondition: Returns a rejected Result with ErrUnknownSlot for unknown slots.
func Use(r Resolver, slot Slot, c Cast) Result {
	switch slot {
	case SlotSkill1:
		return r.Skill1(c)
	case SlotSkill2:
		return r.Skill2(c)
	case SlotUltimate:
		return r.Ultimate(c)
	case SlotRightClick:
		return r.RightClick(c)
	default:
		return reject(fmt.Errorf("%w: %q", ErrUnknownSlot, slot))
	}
}

// New returns the Resolver for a character.
//
// Precondition: src must be non-nil.
// Postcondition: Returns ErrUnknownCharacter for ids without a kit.
func New(id character.ID, src dice.Source) (Resolver, error) {
	if src == nil {
		panic("skill.New: src must be non-nil")
	}
	switch id {
	case character.Arcanist:
		return NewArcanist(), nil
	case character.Vanguard:
		return NewVanguard(), nil
	case character.Bloodreaver:
		return NewBloodreaver(src), nil
	case character.Oracle:
		return NewOracle(src), nil
	case character.Gunslinger:
		return NewGunslinger(src), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharacter, id)
	}
}
