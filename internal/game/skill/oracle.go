package skill

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/dice"
)

const (
	mendingMana       = 25
	mendingHeal       = 35
	mendingRadius     = 180
	blessingMana      = 30
	blessingRadius    = 220
	blessingAttack    = 1.2
	blessingReduction = 0.2
	blessingDuration  = 8 * time.Second
	panicChance       = 0.12
	panicDuration     = 2 * time.Second
	panicCooldown     = 10 * time.Second
	sanctuaryMana     = 70
	sanctuaryHeal     = 60
	sanctuaryRadius   = 260
	sanctuaryDuration = 3 * time.Second
	orbMana           = 6
	orbAmount         = 18
	orbSpeed          = 520
)

// Oracle is the holy support kit. Its circles heal and buff the whole party, but
// every Skill1/Skill2 risks a short panic on the caster.
type Oracle struct {
	kit
	src          dice.Source
	panicReadyAt time.Time
}

// NewOracle returns an Oracle with every slot ready.
//
// Precondition: src must be non-nil.
func NewOracle(src dice.Source) *Oracle {
	if src == nil {
		panic("skill.NewOracle: src must be non-nil")
	}
	return &Oracle{
		kit: newKit(8*time.Second, 15*time.Second, 70*time.Second, time.Second),
		src: src,
	}
}

func (o *Oracle) Character() character.ID { return character.Oracle }

// rollPanic rolls the panic debuff, honouring its internal cooldown.
func (o *Oracle) rollPanic(now time.Time) *Buff {
	if now.Before(o.panicReadyAt) || !dice.Chance(o.src, panicChance) {
		return nil
	}
	o.panicReadyAt = now.Add(panicCooldown)
	if o.src.Intn(2) == 0 {
		b := newBuff(BuffPanicFreeze, now, panicDuration)
		b.Frozen = true
		return b
	}
	b := newBuff(BuffPanicInvert, now, panicDuration)
	b.Inverted = true
	return b
}

// Skill1 places a mending circle at the aim point, or on the caster without one.
func (o *Oracle) Skill1(c Cast) Result {
	if err := o.gate(SlotSkill1, c, mendingMana); err != nil {
		return reject(err)
	}
	pos := c.Self
	if c.HasAim {
		pos = c.Aim
	}
	e := area(c, character.Oracle, SlotSkill1, EffectMendingCircle, KindApplication, pos, mendingRadius, mendingRadius, 600*time.Millisecond)
	e.Amount = -mendingHeal
	o.commit(SlotSkill1, c.Now)
	return Result{OK: true, ManaCost: mendingMana, Effect: e, SelfDebuff: o.rollPanic(c.Now)}
}

// Skill2 blesses every player near the caster.
func (o *Oracle) Skill2(c Cast) Result {
	if err := o.gate(SlotSkill2, c, blessingMana); err != nil {
		return reject(err)
	}
	b := newBuff(BuffBlessing, c.Now, blessingDuration)
	b.AttackMultiplier = blessingAttack
	b.DamageReduction = blessingReduction
	e := area(c, character.Oracle, SlotSkill2, EffectBlessing, KindApplication, c.Self, blessingRadius, blessingRadius, 600*time.Millisecond)
	e.Buff = b
	o.commit(SlotSkill2, c.Now)
	return Result{OK: true, ManaCost: blessingMana, Effect: e, SelfDebuff: o.rollPanic(c.Now)}
}

// Ultimate opens a sanctuary: a heal plus short invulnerability for the party.
func (o *Oracle) Ultimate(c Cast) Result {
	if err := o.gate(SlotUltimate, c, sanctuaryMana); err != nil {
		return reject(err)
	}
	b := newBuff(BuffSanctuary, c.Now, sanctuaryDuration)
	b.Invulnerable = true
	e := area(c, character.Oracle, SlotUltimate, EffectSanctuary, KindApplication, c.Self, sanctuaryRadius, sanctuaryRadius, 800*time.Millisecond)
	e.Amount = -sanctuaryHeal
	e.Buff = b
	o.commit(SlotUltimate, c.Now)
	return Result{OK: true, ManaCost: sanctuaryMana, Effect: e}
}

// RightClick throws a radiant orb that heals an ally or damages the boss.
func (o *Oracle) RightClick(c Cast) Result {
	if err := o.gate(SlotRightClick, c, orbMana); err != nil {
		return reject(err)
	}
	e := projectile(c, character.Oracle, SlotRightClick, EffectRadiantOrb, KindHealOrDamage, orbSpeed, 14, 1500*time.Millisecond)
	e.Amount = orbAmount
	o.commit(SlotRightClick, c.Now)
	return Result{OK: true, ManaCost: orbMana, Effect: e}
}

func (o *Oracle) Update(Tick) {}
