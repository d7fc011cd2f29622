package skill

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/dice"
)

const (
	quickdrawMana     = 6
	quickdrawDamage   = 12
	quickdrawSpeed    = 900
	critStackBonus    = 4000
	critStackDuration = 6 * time.Second
	quickdrawSlowP    = 0.2
	quickdrawSlow     = 2500 * time.Millisecond
	wildCardMana      = 20
	wildCardDuration  = 10 * time.Second
	stormMana         = 45
	stormDamage       = 10
	stormRadius       = 160
	stormDuration     = 3 * time.Second
	stormInterval     = 250 * time.Millisecond
	smokeMana         = 10
	smokeRange        = 180
)

// Gunslinger is the wind marksman kit. Quickdraw builds crit stacks that expire
// independently.
type Gunslinger struct {
	kit
	src    dice.Source
	stacks []time.Time
}

// NewGunslinger returns a Gunslinger with every slot ready.
//
// Precondition: src must be non-nil.
func NewGunslinger(src dice.Source) *Gunslinger {
	if src == nil {
		panic("skill.NewGunslinger: src must be non-nil")
	}
	return &Gunslinger{
		kit: newKit(800*time.Millisecond, 22*time.Second, 40*time.Second, 5*time.Second),
		src: src,
	}
}

func (g *Gunslinger) Character() character.ID { return character.Gunslinger }

// Stacks returns the number of live crit stacks.
func (g *Gunslinger) Stacks() int { return len(g.stacks) }

// Skill1 fires a quickdraw shot and adds a crit stack, replacing the oldest one
// when already at the cap.
func (g *Gunslinger) Skill1(c Cast) Result {
	if err := g.gate(SlotSkill1, c, quickdrawMana); err != nil {
		return reject(err)
	}
	g.prune(c.Now)
	if len(g.stacks) >= MaxCritStacks {
		g.stacks = g.stacks[1:]
	}
	g.stacks = append(g.stacks, c.Now.Add(critStackDuration))

	e := projectile(c, character.Gunslinger, SlotSkill1, EffectQuickdraw, KindProjectile, quickdrawSpeed, 8, time.Second)
	e.Amount = quickdrawDamage
	e.Stacks = len(g.stacks)
	b := newBuff(BuffCritStack, c.Now, critStackDuration)
	b.CritRateBonus = critStackBonus
	r := Result{OK: true, ManaCost: quickdrawMana, Effect: e, Buff: b}
	if dice.Chance(g.src, quickdrawSlowP) {
		r.SlowBoss = quickdrawSlow
	}
	g.commit(SlotSkill1, c.Now)
	return r
}

// Skill2 draws a wild card: red trades safety for damage, blue is the safe pick.
func (g *Gunslinger) Skill2(c Cast) Result {
	if err := g.gate(SlotSkill2, c, wildCardMana); err != nil {
		return reject(err)
	}
	var b *Buff
	if g.src.Intn(2) == 0 {
		b = newBuff(BuffWildRed, c.Now, wildCardDuration)
		b.AttackMultiplier = 1.6
		b.DamageTakenMultiplier = 1.4
	} else {
		b = newBuff(BuffWildBlue, c.Now, wildCardDuration)
		b.AttackMultiplier = 1.25
		b.DamageTakenMultiplier = 0.75
	}
	e := area(c, character.Gunslinger, SlotSkill2, EffectWildCard, KindVisual, c.Self, 36, 36, wildCardDuration)
	e.FollowOwner = true
	g.commit(SlotSkill2, c.Now)
	return Result{OK: true, ManaCost: wildCardMana, Effect: e, Buff: b}
}

// Ultimate starts a bullet storm at the aim point that keeps hitting.
func (g *Gunslinger) Ultimate(c Cast) Result {
	if err := g.gate(SlotUltimate, c, stormMana); err != nil {
		return reject(err)
	}
	e := area(c, character.Gunslinger, SlotUltimate, EffectBulletStorm, KindArea, c.target(), stormRadius, stormRadius, stormDuration)
	e.Amount = stormDamage
	e.HitInterval = stormInterval
	g.commit(SlotUltimate, c.Now)
	return Result{OK: true, ManaCost: stormMana, Effect: e}
}

// RightClick rolls toward the aim point behind a smoke puff.
func (g *Gunslinger) RightClick(c Cast) Result {
	if !c.HasAim {
		return reject(ErrNoTarget)
	}
	if err := g.gate(SlotRightClick, c, smokeMana); err != nil {
		return reject(err)
	}
	dest := teleport(c, smokeRange)
	e := area(c, character.Gunslinger, SlotRightClick, EffectSmokeRoll, KindVisual, c.Self, 50, 50, 500*time.Millisecond)
	g.commit(SlotRightClick, c.Now)
	return Result{OK: true, ManaCost: smokeMana, Effect: e, Teleport: &dest}
}

// Update expires crit stacks.
func (g *Gunslinger) Update(t Tick) {
	g.prune(t.Now)
}

func (g *Gunslinger) prune(now time.Time) {
	i := 0
	for i < len(g.stacks) && !now.Before(g.stacks[i]) {
		i++
	}
	g.stacks = g.stacks[i:]
}
