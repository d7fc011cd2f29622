package skill

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/dice"
)

const (
	novaHPCost      = 0.12
	novaMinHPShare  = 0.25
	novaDamage      = 30
	novaMaxRadius   = 170
	undyingMana     = 20
	undyingDuration = 2500 * time.Millisecond
	undyingStunP    = 0.3
	undyingStun     = 1500 * time.Millisecond
	carnageMana     = 40
	carnageDamage   = 80
	carnageRadius   = 200
	carnageDuration = 10 * time.Second
	rendMana        = 5
	rendDamage      = 16
	rendReach       = 60
	rendRadius      = 70
)

// Bloodreaver is the blood bruiser kit. Blood nova spends health instead of mana.
type Bloodreaver struct {
	kit
	src dice.Source
}

// NewBloodreaver returns a Bloodreaver with every slot ready.
//
// Precondition: src must be non-nil.
func NewBloodreaver(src dice.Source) *Bloodreaver {
	if src == nil {
		panic("skill.NewBloodreaver: src must be non-nil")
	}
	return &Bloodreaver{
		kit: newKit(2500*time.Millisecond, 20*time.Second, 60*time.Second, 1200*time.Millisecond),
		src: src,
	}
}

func (b *Bloodreaver) Character() character.ID { return character.Bloodreaver }

// Skill1 releases a blood nova around the caster.
//
// Postcondition: HPCost is 12% of current HP, or 0 while invulnerable.
func (b *Bloodreaver) Skill1(c Cast) Result {
	if err := b.gate(SlotSkill1, c, 0); err != nil {
		return reject(err)
	}
	if c.HP <= novaMinHPShare*c.MaxHP {
		return reject(ErrInsufficientHP)
	}
	cost := c.HP * novaHPCost
	if c.Invulnerable {
		cost = 0
	}
	e := area(c, character.Bloodreaver, SlotSkill1, EffectBloodNova, KindArea, c.Self, 30, novaMaxRadius, 500*time.Millisecond)
	e.Amount = novaDamage
	e.FollowOwner = true
	b.commit(SlotSkill1, c.Now)
	return Result{OK: true, HPCost: cost, Effect: e}
}

// Skill2 grants brief invulnerability with a chance to stun the boss.
func (b *Bloodreaver) Skill2(c Cast) Result {
	if err := b.gate(SlotSkill2, c, undyingMana); err != nil {
		return reject(err)
	}
	buff := newBuff(BuffUndying, c.Now, undyingDuration)
	buff.Invulnerable = true
	e := area(c, character.Bloodreaver, SlotSkill2, EffectUndying, KindVisual, c.Self, 44, 44, undyingDuration)
	e.FollowOwner = true
	r := Result{OK: true, ManaCost: undyingMana, Effect: e, Buff: buff}
	if dice.Chance(b.src, undyingStunP) {
		r.StunBoss = undyingStun
	}
	b.commit(SlotSkill2, c.Now)
	return r
}

// Ultimate bursts around the caster and starts a frenzy.
func (b *Bloodreaver) Ultimate(c Cast) Result {
	if err := b.gate(SlotUltimate, c, carnageMana); err != nil {
		return reject(err)
	}
	e := area(c, character.Bloodreaver, SlotUltimate, EffectCarnage, KindArea, c.Self, carnageRadius, carnageRadius, 250*time.Millisecond)
	e.Amount = carnageDamage
	buff := newBuff(BuffFrenzy, c.Now, carnageDuration)
	b.commit(SlotUltimate, c.Now)
	return Result{OK: true, ManaCost: carnageMana, Effect: e, Buff: buff}
}

// RightClick rends a short arc in front of the caster.
func (b *Bloodreaver) RightClick(c Cast) Result {
	if err := b.gate(SlotRightClick, c, rendMana); err != nil {
		return reject(err)
	}
	dir := c.heading()
	e := area(c, character.Bloodreaver, SlotRightClick, EffectRend, KindArea, c.Self.Add(dir.Scale(rendReach)), rendRadius, rendRadius, 150*time.Millisecond)
	e.Angle = dir.Angle()
	e.Amount = rendDamage
	b.commit(SlotRightClick, c.Now)
	return Result{OK: true, ManaCost: rendMana, Effect: e}
}

func (b *Bloodreaver) Update(Tick) {}
