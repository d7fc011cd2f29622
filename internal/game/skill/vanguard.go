package skill

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/character"
)

const (
	slamMana          = 10
	slamRange         = 140
	slamDamage        = 14 * 2.5
	slamStun          = 1200 * time.Millisecond
	ironWallMana      = 25
	ironWallReduction = 0.6
	ironWallDuration  = 5 * time.Second
	shatterMana       = 50
	shatterDamage     = 90
	shatterMaxRadius  = 260
	shatterStun       = 2 * time.Second
	rallyMana         = 15
	rallyMultiplier   = 1.25
	rallyDuration     = 8 * time.Second
)

// Vanguard is the earth tank kit.
type Vanguard struct {
	kit
}

// NewVanguard returns a Vanguard with every slot ready.
func NewVanguard() *Vanguard {
	return &Vanguard{kit: newKit(6*time.Second, 18*time.Second, 50*time.Second, 20*time.Second)}
}

func (v *Vanguard) Character() character.ID { return character.Vanguard }

// Skill1 slams the boss when it stands within melee range, stunning it.
func (v *Vanguard) Skill1(c Cast) Result {
	if err := v.gate(SlotSkill1, c, slamMana); err != nil {
		return reject(err)
	}
	if c.Self.Dist(c.Boss) > slamRange {
		return reject(ErrOutOfRange)
	}
	e := area(c, character.Vanguard, SlotSkill1, EffectShieldSlam, KindArea, c.Boss, 40, 40, 150*time.Millisecond)
	e.Amount = slamDamage
	v.commit(SlotSkill1, c.Now)
	return Result{OK: true, ManaCost: slamMana, Effect: e, StunBoss: slamStun}
}

// Skill2 raises an iron wall: heavy damage reduction on self.
func (v *Vanguard) Skill2(c Cast) Result {
	if err := v.gate(SlotSkill2, c, ironWallMana); err != nil {
		return reject(err)
	}
	b := newBuff(BuffIronWall, c.Now, ironWallDuration)
	b.DamageReduction = ironWallReduction
	e := area(c, character.Vanguard, SlotSkill2, EffectIronWall, KindVisual, c.Self, 48, 48, ironWallDuration)
	e.FollowOwner = true
	v.commit(SlotSkill2, c.Now)
	return Result{OK: true, ManaCost: ironWallMana, Effect: e, Buff: b}
}

// Ultimate shatters the ground around the caster. The stun lands only when the
// boss is inside the final radius.
func (v *Vanguard) Ultimate(c Cast) Result {
	if err := v.gate(SlotUltimate, c, shatterMana); err != nil {
		return reject(err)
	}
	e := area(c, character.Vanguard, SlotUltimate, EffectEarthshatter, KindArea, c.Self, 40, shatterMaxRadius, 800*time.Millisecond)
	e.Amount = shatterDamage
	r := Result{OK: true, ManaCost: shatterMana, Effect: e}
	if c.Self.Dist(c.Boss) <= shatterMaxRadius {
		r.StunBoss = shatterStun
	}
	v.commit(SlotUltimate, c.Now)
	return r
}

// RightClick rallies: an attack buff on self.
func (v *Vanguard) RightClick(c Cast) Result {
	if err := v.gate(SlotRightClick, c, rallyMana); err != nil {
		return reject(err)
	}
	b := newBuff(BuffRally, c.Now, rallyDuration)
	b.AttackMultiplier = rallyMultiplier
	e := area(c, character.Vanguard, SlotRightClick, EffectRallyingCry, KindVisual, c.Self, 60, 60, 600*time.Millisecond)
	e.FollowOwner = true
	v.commit(SlotRightClick, c.Now)
	return Result{OK: true, ManaCost: rallyMana, Effect: e, Buff: b}
}

func (v *Vanguard) Update(Tick) {}
