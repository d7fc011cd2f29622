package skill

import (
	"math"
	"time"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/geom"
)

const (
	arcaneBoltMana     = 8
	arcaneBoltDamage   = 9
	arcaneBoltSpeed    = 720
	arcaneStackStep    = 0.25
	arcaneMaxMult      = 3.0
	arcaneStillRadius  = 12
	sunbeamMana        = 35
	sunbeamMultiplier  = 6
	sunbeamLength      = 900
	sunbeamWidth       = 44
	meteorMana         = 60
	meteorDamage       = 120
	meteorStartRadius  = 30
	meteorMaxRadius    = 220
	blinkMana          = 15
	blinkRange         = 260
	arcaneMaxStacks    = int((arcaneMaxMult - 1) / arcaneStackStep)
	arcaneBoltLifetime = 1200 * time.Millisecond
)

// Arcanist is the fire caster kit. Arcane bolt stacks while the caster stands
// still.
type Arcanist struct {
	kit
	stacks   int
	anchor   geom.Vec
	anchored bool
}

// NewArcanist returns an Arcanist with every slot ready.
func NewArcanist() *Arcanist {
	return &Arcanist{kit: newKit(350*time.Millisecond, 14*time.Second, 45*time.Second, 6*time.Second)}
}

func (a *Arcanist) Character() character.ID { return character.Arcanist }

// Stacks returns the current arcane bolt stack count.
func (a *Arcanist) Stacks() int { return a.stacks }

// StackMultiplier returns the damage multiplier the next bolt would carry.
func (a *Arcanist) StackMultiplier() float64 {
	return math.Min(1+arcaneStackStep*float64(a.stacks), arcaneMaxMult)
}

func (a *Arcanist) moved(pos geom.Vec) bool {
	return a.anchored && pos.Dist(a.anchor) >= arcaneStillRadius
}

// Skill1 fires an arcane bolt toward the aim point.
func (a *Arcanist) Skill1(c Cast) Result {
	if err := a.gate(SlotSkill1, c, arcaneBoltMana); err != nil {
		return reject(err)
	}
	if a.moved(c.Self) {
		a.stacks = 0
	}
	e := projectile(c, character.Arcanist, SlotSkill1, EffectArcaneBolt, KindProjectile, arcaneBoltSpeed, 10, arcaneBoltLifetime)
	e.Amount = arcaneBoltDamage * a.StackMultiplier()
	e.Stacks = a.stacks

	if a.stacks < arcaneMaxStacks {
		a.stacks++
	}
	a.anchor, a.anchored = c.Self, true
	a.commit(SlotSkill1, c.Now)
	return Result{OK: true, ManaCost: arcaneBoltMana, Effect: e}
}

// Skill2 fires a sunbeam that hits the boss at most once.
func (a *Arcanist) Skill2(c Cast) Result {
	if err := a.gate(SlotSkill2, c, sunbeamMana); err != nil {
		return reject(err)
	}
	e := newEffect(c, character.Arcanist, SlotSkill2, EffectSunbeam, KindBeam, 400*time.Millisecond)
	e.Angle = c.heading().Angle()
	e.Length = sunbeamLength
	e.Width = sunbeamWidth
	e.Amount = arcaneBoltDamage * sunbeamMultiplier
	a.commit(SlotSkill2, c.Now)
	return Result{OK: true, ManaCost: sunbeamMana, Effect: e}
}

// Ultimate drops a meteor whose impact expands at the aim point.
func (a *Arcanist) Ultimate(c Cast) Result {
	if err := a.gate(SlotUltimate, c, meteorMana); err != nil {
		return reject(err)
	}
	e := area(c, character.Arcanist, SlotUltimate, EffectMeteor, KindArea, c.target(), meteorStartRadius, meteorMaxRadius, 1200*time.Millisecond)
	e.Amount = meteorDamage
	a.commit(SlotUltimate, c.Now)
	return Result{OK: true, ManaCost: meteorMana, Effect: e}
}

// RightClick blinks toward the aim point.
func (a *Arcanist) RightClick(c Cast) Result {
	if !c.HasAim {
		return reject(ErrNoTarget)
	}
	if err := a.gate(SlotRightClick, c, blinkMana); err != nil {
		return reject(err)
	}
	dest := teleport(c, blinkRange)
	e := area(c, character.Arcanist, SlotRightClick, EffectBlink, KindVisual, c.Self, 30, 30, 300*time.Millisecond)
	a.commit(SlotRightClick, c.Now)
	return Result{OK: true, ManaCost: blinkMana, Effect: e, Teleport: &dest}
}

// Update drops the bolt stacks once the caster leaves its casting spot.
func (a *Arcanist) Update(t Tick) {
	if a.moved(t.Pos) {
		a.stacks = 0
		a.anchored = false
	}
}
