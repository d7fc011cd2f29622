// Package player implements the server-side state of one raid participant:
// latched movement input, dodge, basic attacks, buffs, resources and the skill
// resolver chosen for its character.
package player

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/geom"
	"github.com/cory-johannsen/raid/internal/game/skill"
)

const (
	Radius          = 20
	dodgeWindow     = 350 * time.Millisecond
	dodgeCooldown   = 1200 * time.Millisecond
	dodgeMultiplier = 2.2
	manaRegen       = 6
	rateWindow      = 5 * time.Second
)

// ErrDead rejects actions from a defeated player.
var ErrDead = errors.New("player is dead")

// Input is the latched movement intent; the latest message wins.
type Input struct {
	Up    bool `json:"up" msgpack:"up"`
	Down  bool `json:"down" msgpack:"down"`
	Left  bool `json:"left" msgpack:"left"`
	Right bool `json:"right" msgpack:"right"`
}

// Direction returns the normalised movement direction of the input.
func (in Input) Direction() geom.Vec {
	var d geom.Vec
	if in.Up {
		d.Y--
	}
	if in.Down {
		d.Y++
	}
	if in.Left {
		d.X--
	}
	if in.Right {
		d.X++
	}
	return d.Norm()
}

type sample struct {
	at     time.Time
	amount float64
}

// Config describes a new player.
type Config struct {
	ID         string
	Name       string
	Definition *character.Definition
	Resolver   skill.Resolver
	World      geom.Rect
	Spawn      geom.Vec
	// NextID hands out room-unique projectile ids. Nil uses a local counter.
	NextID func(prefix string) string
}

// Player is owned by one room and mutated only from its goroutine.
type Player struct {
	ID        string
	Name      string
	Character character.ID
	Element   character.Element

	pos    geom.Vec
	facing geom.Vec
	world  geom.Rect
	stats  Stats
	input  Input
	alive  bool

	dodging    bool
	dodgeUntil time.Time
	nextDodge  time.Time
	nextMelee  time.Time
	nextRanged time.Time

	buffs       []*skill.Buff
	projectiles []*Projectile
	resolver    skill.Resolver
	nextID      func(prefix string) string

	totalDamage  float64
	totalHealing float64
	damageLog    []sample
	healLog      []sample
}

// New creates a live player with full resources at cfg.Spawn.
//
// Precondition: cfg.Definition and cfg.Resolver must be non-nil and agree on the
// character.
func New(cfg Config) *Player {
	if cfg.Definition == nil || cfg.Resolver == nil {
		panic("player.New: definition and resolver must be non-nil")
	}
	if cfg.Definition.ID != cfg.Resolver.Character() {
		panic(fmt.Sprintf("player.New: resolver for %q given to %q", cfg.Resolver.Character(), cfg.Definition.ID))
	}
	next := cfg.NextID
	if next == nil {
		n := 0
		next = func(prefix string) string {
			n++
			return fmt.Sprintf("%s%d", prefix, n)
		}
	}
	return &Player{
		ID:        cfg.ID,
		Name:      cfg.Name,
		Character: cfg.Definition.ID,
		Element:   cfg.Definition.Element,
		pos:       cfg.World.Clamp(cfg.Spawn, Radius),
		facing:    geom.V(1, 0),
		world:     cfg.World,
		stats:     NewStats(cfg.Definition.Stats),
		alive:     true,
		resolver:  cfg.Resolver,
		nextID:    next,
	}
}

func (p *Player) Pos() geom.Vec { return p.pos }
func (p *Player) Facing() geom.Vec { return p.facing }
func (p *Player) Stats() Stats { return p.stats }
func (p *Player) Alive() bool { return p.alive }
func (p *Player) Dodging() bool { return p.dodging }
func (p *Player) Input() Input { return p.input }
func (p *Player) Resolver() skill.Resolver { return p.resolver }
func (p *Player) Projectiles() []*Projectile { return p.projectiles }
func (p *Player) Buffs() []*skill.Buff { return p.buffs }
func (p *Player) TotalDamage() float64 { return p.totalDamage }
func (p *Player) TotalHealing() float64 { return p.totalHealing }

// Update advances the player by dt seconds at now.
func (p *Player) Update(now time.Time, dt float64) {
	if p.dodging && !now.Before(p.dodgeUntil) {
		p.dodging = false
	}
	p.expireBuffs(now)

	if p.alive {
		p.move(dt)
		p.stats.Mana = math.Min(p.stats.MaxMana, p.stats.Mana+manaRegen*dt)
	}

	live := p.projectiles[:0]
	for _, pr := range p.projectiles {
		if pr.Expired(now) {
			continue
		}
		pr.Pos = pr.Pos.Add(pr.Vel.Scale(dt))
		live = append(live, pr)
	}
	for i := len(live); i < len(p.projectiles); i++ {
		p.projectiles[i] = nil
	}
	p.projectiles = live

	p.resolver.Update(skill.Tick{Now: now, Pos: p.pos})
	p.damageLog = trim(p.damageLog, now)
	p.healLog = trim(p.healLog, now)
}

func (p *Player) move(dt float64) {
	if p.Frozen() {
		return
	}
	dir := p.input.Direction()
	if dir.IsZero() {
		return
	}
	if p.Inverted() {
		dir = dir.Scale(-1)
	}
	speed := p.stats.MoveSpeed
	if p.dodging {
		speed *= dodgeMultiplier
	}
	p.facing = dir
	p.pos = p.world.Clamp(p.pos.Add(dir.Scale(speed*dt)), Radius)
}

// HandleMovement latches the latest movement input.
func (p *Player) HandleMovement(in Input) {
	p.input = in
}

// Dodge starts a dodge window.
//
// Postcondition: Returns false, with no state change, when dead or on cooldown.
func (p *Player) Dodge(now time.Time) bool {
	if !p.alive || now.Before(p.nextDodge) {
		return false
	}
	p.dodging = true
	p.dodgeUntil = now.Add(dodgeWindow)
	p.nextDodge = now.Add(dodgeCooldown)
	return true
}

// TakeDamage applies incoming damage after mitigation and buffs.
//
// Postcondition: Returns the HP actually lost; 0 while dead, dodging or
// invulnerable. HP never drops below 0 and the player dies when it reaches 0.
func (p *Player) TakeDamage(amount, pen float64) float64 {
	if !p.alive || p.dodging || p.Invulnerable() || amount <= 0 {
		return 0
	}
	d := combat.Mitigate(amount, p.stats.Defense, pen)
	for _, b := range p.buffs {
		d *= 1 - b.DamageReduction
		d *= b.DamageTaken()
	}
	if d > p.stats.HP {
		d = p.stats.HP
	}
	p.stats.HP -= d
	if p.stats.HP <= 0 {
		p.stats.HP = 0
		p.alive = false
		p.input = Input{}
		p.dodging = false
	}
	return d
}

// Heal restores up to amount HP.
//
// Postcondition: Returns the HP actually restored; 0 when dead.
func (p *Player) Heal(amount float64) float64 {
	if !p.alive || amount <= 0 {
		return 0
	}
	h := math.Min(amount, p.stats.MaxHP-p.stats.HP)
	p.stats.HP += h
	return h
}

// UseMana spends amount mana.
//
// Postcondition: Returns false, leaving mana unchanged, when amount exceeds the
// current mana. Mana never becomes negative.
func (p *Player) UseMana(amount float64) bool {
	if amount < 0 || amount > p.stats.Mana {
		return false
	}
	p.stats.Mana -= amount
	return true
}

// AddBuff attaches b. Crit stacks accumulate up to skill.MaxCritStacks, dropping
// the oldest; any other type replaces the existing buff of that type.
func (p *Player) AddBuff(b *skill.Buff) {
	if b == nil {
		return
	}
	if b.Type == skill.BuffCritStack {
		count, oldest := 0, -1
		for i, cur := range p.buffs {
			if cur.Type != b.Type {
				continue
			}
			count++
			if oldest < 0 || cur.ExpiresAt.Before(p.buffs[oldest].ExpiresAt) {
				oldest = i
			}
		}
		if count >= skill.MaxCritStacks {
			p.buffs = append(p.buffs[:oldest], p.buffs[oldest+1:]...)
		}
		p.buffs = append(p.buffs, b)
		return
	}
	for i, cur := range p.buffs {
		if cur.Type == b.Type {
			p.buffs[i] = b
			return
		}
	}
	p.buffs = append(p.buffs, b)
}

func (p *Player) expireBuffs(now time.Time) {
	live := p.buffs[:0]
	for _, b := range p.buffs {
		if !b.Expired(now) {
			live = append(live, b)
		}
	}
	p.buffs = live
}

func (p *Player) hasFlag(f func(b *skill.Buff) bool) bool {
	for _, b := range p.buffs {
		if f(b) {
			return true
		}
	}
	return false
}

func (p *Player) Invulnerable() bool {
	return p.hasFlag(func(b *skill.Buff) bool { return b.Invulnerable })
}

func (p *Player) Frozen() bool {
	return p.hasFlag(func(b *skill.Buff) bool { return b.Frozen })
}

func (p *Player) Inverted() bool {
	return p.hasFlag(func(b *skill.Buff) bool { return b.Inverted })
}

// AttackMultiplier returns the product of every buff's attack multiplier at now.
func (p *Player) AttackMultiplier(now time.Time) float64 {
	m := 1.0
	for _, b := range p.buffs {
		m *= b.Attack(now)
	}
	return m
}

// CritRate returns the crit-rate stat including buff bonuses.
func (p *Player) CritRate() float64 {
	c := p.stats.CritRate
	for _, b := range p.buffs {
		c += b.CritRateBonus
	}
	return c
}

// DamageInput builds the damage-model input for an outgoing hit of base damage.
func (p *Player) DamageInput(base, targetDefense float64, now time.Time) combat.DamageInput {
	return combat.DamageInput{
		Base:             base,
		Attack:           p.stats.Attack,
		DefensePen:       p.stats.DefensePen,
		TargetDefense:    targetDefense,
		CritRate:         p.CritRate(),
		CritDamage:       p.stats.CritDamage,
		DamageBoost:      p.stats.DamageBoost,
		AttackMultiplier: p.AttackMultiplier(now),
	}
}

func (p *Player) attackCooldown(base time.Duration) time.Duration {
	return time.Duration(float64(base) / p.stats.AttackSpeed)
}

// aimAt returns the unit direction toward target, falling back to facing.
func (p *Player) aimAt(target geom.Vec) geom.Vec {
	d := target.Sub(p.pos).Norm()
	if d.IsZero() {
		return p.facing
	}
	return d
}

// CreateMeleeAttack swings toward target.
//
// Postcondition: Returns nil when dead or on cooldown.
func (p *Player) CreateMeleeAttack(target geom.Vec, now time.Time) *Projectile {
	if !p.alive || now.Before(p.nextMelee) {
		return nil
	}
	dir := p.aimAt(target)
	p.facing = dir
	pr := &Projectile{
		ID:        p.nextID("p"),
		OwnerID:   p.ID,
		Kind:      Melee,
		Pos:       p.pos.Add(dir.Scale(meleeReach)),
		Damage:    meleeDamage,
		Radius:    meleeRadius,
		CreatedAt: now,
		ExpiresAt: now.Add(meleeLifetime),
	}
	p.projectiles = append(p.projectiles, pr)
	p.nextMelee = now.Add(p.attackCooldown(meleeCooldown))
	return pr
}

// CreateRangedAttack fires a bolt toward target.
//
// Postcondition: Returns nil when dead or on cooldown.
func (p *Player) CreateRangedAttack(target geom.Vec, now time.Time) *Projectile {
	if !p.alive || now.Before(p.nextRanged) {
		return nil
	}
	dir := p.aimAt(target)
	p.facing = dir
	pr := &Projectile{
		ID:        p.nextID("p"),
		OwnerID:   p.ID,
		Kind:      Ranged,
		Pos:       p.pos,
		Vel:       dir.Scale(rangedSpeed),
		Damage:    rangedDamage,
		Radius:    rangedRadius,
		CreatedAt: now,
		ExpiresAt: now.Add(rangedLifetime),
	}
	p.projectiles = append(p.projectiles, pr)
	p.nextRanged = now.Add(p.attackCooldown(rangedCooldown))
	return pr
}

// RemoveProjectile drops the projectile with id, reporting whether it existed.
func (p *Player) RemoveProjectile(id string) bool {
	for i, pr := range p.projectiles {
		if pr.ID == id {
			p.projectiles = append(p.projectiles[:i], p.projectiles[i+1:]...)
			return true
		}
	}
	return false
}

// Cast snapshots the player's view for a skill activation.
func (p *Player) Cast(now time.Time, aim geom.Vec, hasAim bool, boss geom.Vec) skill.Cast {
	return skill.Cast{
		Now:          now,
		OwnerID:      p.ID,
		Self:         p.pos,
		Aim:          aim,
		HasAim:       hasAim,
		Boss:         boss,
		HP:           p.stats.HP,
		MaxHP:        p.stats.MaxHP,
		Mana:         p.stats.Mana,
		MaxMana:      p.stats.MaxMana,
		Attack:       p.stats.Attack,
		Invulnerable: p.Invulnerable(),
	}
}

func (p *Player) UseSkill1(c skill.Cast) skill.Result { return p.UseSkill(skill.SlotSkill1, c) }
func (p *Player) UseSkill2(c skill.Cast) skill.Result { return p.UseSkill(skill.SlotSkill2, c) }
func (p *Player) UseUltimate(c skill.Cast) skill.Result { return p.UseSkill(skill.SlotUltimate, c) }
func (p *Player) UseRightClick(c skill.Cast) skill.Result { return p.UseSkill(skill.SlotRightClick, c) }

// UseSkill resolves slot and applies the self-directed part of the result: costs,
// buff, debuff and teleport. The effect and boss crowd control are left for the
// room.
//
// Postcondition: A result whose mana cost exceeds the player's mana is rejected
// with skill.ErrInsufficientMana and nothing is applied.
func (p *Player) UseSkill(slot skill.Slot, c skill.Cast) skill.Result {
	if !p.alive {
		return skill.Result{Err: ErrDead}
	}
	res := skill.Use(p.resolver, slot, c)
	if !res.OK {
		return res
	}
	if !p.UseMana(res.ManaCost) {
		return skill.Result{Err: fmt.Errorf("%w: cost %.1f, have %.1f", skill.ErrInsufficientMana, res.ManaCost, p.stats.Mana)}
	}
	if res.HPCost > 0 {
		p.stats.HP = math.Max(1, p.stats.HP-res.HPCost)
	}
	p.AddBuff(res.Buff)
	p.AddBuff(res.SelfDebuff)
	if res.Teleport != nil {
		p.pos = p.world.Clamp(*res.Teleport, Radius)
	}
	if res.Effect != nil && res.Effect.FollowOwner {
		res.Effect.Pos = p.pos
	}
	return res
}

// GainExperience adds xp, returning the number of levels gained.
func (p *Player) GainExperience(xp int) int {
	return p.stats.GainExperience(xp)
}

// AllocateStat spends one stat point on name.
func (p *Player) AllocateStat(name string) error {
	return p.stats.Allocate(name)
}

// RecordDamage adds dealt damage to the totals and the rolling window.
func (p *Player) RecordDamage(amount float64, now time.Time) {
	if amount <= 0 {
		return
	}
	p.totalDamage += amount
	p.damageLog = append(p.damageLog, sample{at: now, amount: amount})
}

// RecordHealing adds healing done to the totals and the rolling window.
func (p *Player) RecordHealing(amount float64, now time.Time) {
	if amount <= 0 {
		return
	}
	p.totalHealing += amount
	p.healLog = append(p.healLog, sample{at: now, amount: amount})
}

// DPS returns damage per second over the trailing window ending at now.
func (p *Player) DPS(now time.Time) float64 { return rate(p.damageLog, now) }

// HPS returns healing per second over the trailing window ending at now.
func (p *Player) HPS(now time.Time) float64 { return rate(p.healLog, now) }

func rate(log []sample, now time.Time) float64 {
	cutoff := now.Add(-rateWindow)
	sum := 0.0
	for _, s := range log {
		if s.at.After(cutoff) && !s.at.After(now) {
			sum += s.amount
		}
	}
	return sum / rateWindow.Seconds()
}

func trim(log []sample, now time.Time) []sample {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(log) && !log[i].at.After(cutoff) {
		i++
	}
	return log[i:]
}
