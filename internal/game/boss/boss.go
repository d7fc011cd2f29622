// Package boss implements the server-authoritative raid boss: wandering movement,
// telegraphed attacks advanced by timestamps, crowd control and a multi-bar health
// track.
package boss

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/geom"
	"github.com/cory-johannsen/raid/internal/game/health"
)

const (
	DefaultRadius     = 60
	DefaultSpeed      = 110
	DefaultDefense    = 15000
	moveInterval      = 2 * time.Second
	burstChance       = 0.15
	burstMultiplier   = 1.8
	slowMultiplier    = 0.5
	rageDamageStep    = 0.1
	rageHasteStep     = 0.05
	minCooldownFactor = 0.4

	laserCooldown  = 5 * time.Second
	laserWarning   = time.Second
	laserActive    = 600 * time.Millisecond
	laserLength    = 1400
	laserWidth     = 36
	laserSpin      = 0.6
	laserDamage    = 18
	aoeCooldown    = 7 * time.Second
	aoeZones       = 3
	aoeSpacing     = 180
	aoeJitter      = 70
	aoeStagger     = 250 * time.Millisecond
	aoeWarning     = time.Second
	aoeActive      = 350 * time.Millisecond
	aoeRadius      = 95
	aoeDamage      = 14
	circleCooldown = 11 * time.Second
	circleGrow     = 2500 * time.Millisecond
	circlePulse    = 50 * time.Millisecond
	circleRadius   = 380
	circleDamage   = 22
)

// Movement pattern weights: horizontal, vertical, diagonal, toward nearest.
var moveWeights = []int{25, 25, 20, 30}

type pattern int

const (
	patternHorizontal pattern = iota
	patternVertical
	patternDiagonal
	patternChase
)

// Target is a player as seen by the boss AI.
type Target struct {
	ID    string
	Pos   geom.Vec
	Alive bool
}

// Script customises boss behaviour at bar transitions.
type Script interface {
	// OnBarDefeated returns an attack haste multiplier; values <= 0 are ignored.
	OnBarDefeated(barsDefeated, rage int) (float64, error)
}

// Config parameterises a Boss. Zero fields take package defaults.
type Config struct {
	World      geom.Rect
	Players    int
	MaxBars    int
	Radius     float64
	Speed      float64
	Defense    float64
	DefensePen float64
	Script     Script
	Logger     *zap.Logger
}

// Boss is owned by exactly one room and mutated only from its tick.
type Boss struct {
	pos    geom.Vec
	dir    geom.Vec
	radius float64
	speed  float64
	world  geom.Rect
	health *health.Track

	defense    float64
	defensePen float64

	stunnedUntil time.Time
	slowedUntil  time.Time

	pattern    pattern
	burst      bool
	nextMoveAt time.Time
	nextLaser  time.Time
	nextAOE    time.Time
	nextCircle time.Time
	haste      float64

	attacks []*Attack
	nextID  int

	src    dice.Source
	script Script
	logger *zap.Logger
}

// New places a boss in the centre of the world at now.
//
// Precondition: cfg.World must have positive size; cfg.Players >= 1; src non-nil.
func New(cfg Config, src dice.Source, now time.Time) *Boss {
	if cfg.World.Width <= 0 || cfg.World.Height <= 0 {
		panic("boss.New: world must have positive size")
	}
	if src == nil {
		panic("boss.New: src must be non-nil")
	}
	if cfg.Radius <= 0 {
		cfg.Radius = DefaultRadius
	}
	if cfg.Speed <= 0 {
		cfg.Speed = DefaultSpeed
	}
	if cfg.Defense == 0 {
		cfg.Defense = DefaultDefense
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Boss{
		pos:        cfg.World.Center(),
		radius:     cfg.Radius,
		speed:      cfg.Speed,
		world:      cfg.World,
		health:     health.NewTrack(cfg.Players, cfg.MaxBars),
		defense:    cfg.Defense,
		defensePen: cfg.DefensePen,
		nextMoveAt: now,
		nextLaser:  now.Add(2 * time.Second),
		nextAOE:    now.Add(3500 * time.Millisecond),
		nextCircle: now.Add(6 * time.Second),
		haste:      1,
		src:        src,
		script:     cfg.Script,
		logger:     cfg.Logger,
	}
}

func (b *Boss) Pos() geom.Vec { return b.pos }
func (b *Boss) Radius() float64 { return b.radius }
func (b *Boss) Defense() float64 { return b.defense }
func (b *Boss) DefensePen() float64 { return b.defensePen }
func (b *Boss) Health() *health.Track { return b.health }
func (b *Boss) Dead() bool { return b.health.Dead() }
func (b *Boss) Attacks() []*Attack { return b.attacks }
func (b *Boss) Stunned(now time.Time) bool { return now.Before(b.stunnedUntil) }
func (b *Boss) Slowed(now time.Time) bool { return now.Before(b.slowedUntil) }

// Velocity returns the current movement vector in px/s.
func (b *Boss) Velocity(now time.Time) geom.Vec {
	if b.Stunned(now) {
		return geom.Vec{}
	}
	return b.dir.Scale(b.currentSpeed(now))
}

func (b *Boss) currentSpeed(now time.Time) float64 {
	s := b.speed
	if b.burst {
		s *= burstMultiplier
	}
	if b.Slowed(now) {
		s *= slowMultiplier
	}
	return s
}

// Stun stops movement and attack spawning until now+d. Overlapping stuns keep the
// later expiry.
func (b *Boss) Stun(d time.Duration, now time.Time) {
	if until := now.Add(d); until.After(b.stunnedUntil) {
		b.stunnedUntil = until
	}
	b.dir = geom.Vec{}
}

// Slow halves movement speed until now+d.
func (b *Boss) Slow(d time.Duration, now time.Time) {
	if until := now.Add(d); until.After(b.slowedUntil) {
		b.slowedUntil = until
	}
}

// TakeDamage applies amount to the health track.
//
// Postcondition: barDefeated is true iff at least one bar was exhausted.
func (b *Boss) TakeDamage(amount float64) (barDefeated bool, events []health.BarEvent) {
	events = b.health.ApplyDamage(amount)
	for _, ev := range events {
		if ev.BarDefeated {
			barDefeated = true
		}
	}
	if barDefeated && b.script != nil {
		h, err := b.script.OnBarDefeated(b.health.BarsDefeated(), b.health.Rage())
		switch {
		case err != nil:
			b.logger.Warn("boss script hook failed", zap.Error(err))
		case h > 0:
			b.haste = h
		}
	}
	return barDefeated, events
}

// Update advances the boss by dt seconds at now.
func (b *Boss) Update(now time.Time, dt float64, players []Target) {
	live := b.attacks[:0]
	for _, a := range b.attacks {
		if a.advance(now, dt) {
			live = append(live, a)
		}
	}
	for i := len(live); i < len(b.attacks); i++ {
		b.attacks[i] = nil
	}
	b.attacks = live

	if b.Stunned(now) || b.Dead() {
		return
	}
	nearest, ok := b.nearest(players)
	b.move(now, dt, nearest, ok)
	if ok {
		b.spawn(now, nearest)
	}
}

func (b *Boss) nearest(players []Target) (geom.Vec, bool) {
	best, found := math.Inf(1), false
	var pos geom.Vec
	for _, p := range players {
		if !p.Alive {
			continue
		}
		if d := b.pos.Dist(p.Pos); d < best {
			best, pos, found = d, p.Pos, true
		}
	}
	return pos, found
}

func (b *Boss) move(now time.Time, dt float64, nearest geom.Vec, hasTarget bool) {
	if !now.Before(b.nextMoveAt) || b.dir.IsZero() {
		b.pattern = pattern(dice.Weighted(b.src, moveWeights))
		b.burst = dice.Chance(b.src, burstChance)
		b.dir = b.rollDirection()
		b.nextMoveAt = now.Add(moveInterval)
	}
	if b.pattern == patternChase && hasTarget {
		if d := nearest.Sub(b.pos).Norm(); !d.IsZero() {
			b.dir = d
		}
	}
	next := b.pos.Add(b.dir.Scale(b.currentSpeed(now) * dt))
	clamped := b.world.Clamp(next, b.radius)
	if clamped.X != next.X {
		b.dir.X = -b.dir.X
	}
	if clamped.Y != next.Y {
		b.dir.Y = -b.dir.Y
	}
	b.pos = clamped
}

func (b *Boss) sign() float64 {
	if b.src.Intn(2) == 0 {
		return -1
	}
	return 1
}

func (b *Boss) rollDirection() geom.Vec {
	switch b.pattern {
	case patternHorizontal:
		return geom.V(b.sign(), 0)
	case patternVertical:
		return geom.V(0, b.sign())
	case patternDiagonal:
		return geom.V(b.sign(), b.sign()).Norm()
	default:
		return geom.V(b.sign(), 0)
	}
}

// cooldown scales a base attack cooldown by rage and script haste.
func (b *Boss) cooldown(base time.Duration) time.Duration {
	f := 1 / ((1 + rageHasteStep*float64(b.health.Rage())) * b.haste)
	if f < minCooldownFactor {
		f = minCooldownFactor
	}
	return time.Duration(float64(base) * f)
}

func (b *Boss) damage(base float64) float64 {
	return base * (1 + rageDamageStep*float64(b.health.Rage()))
}

func (b *Boss) newAttack(kind AttackKind, now time.Time) *Attack {
	b.nextID++
	a := &Attack{ID: fmt.Sprintf("b%d", b.nextID), Kind: kind, SpawnedAt: now}
	b.attacks = append(b.attacks, a)
	return a
}

func (b *Boss) spawn(now time.Time, target geom.Vec) {
	heading := target.Sub(b.pos).Norm()
	if heading.IsZero() {
		heading = geom.V(1, 0)
	}
	if !now.Before(b.nextLaser) {
		a := b.newAttack(AttackLaser, now)
		a.Pos = b.pos
		a.Angle = heading.Angle()
		a.Length = laserLength
		a.Width = laserWidth
		a.spin = laserSpin * b.sign()
		a.Damage = b.damage(laserDamage)
		a.ActivatesAt = now.Add(laserWarning)
		a.ExpiresAt = a.ActivatesAt.Add(laserActive)
		b.nextLaser = now.Add(b.cooldown(laserCooldown))
	}
	if !now.Before(b.nextAOE) {
		for i := 0; i < aoeZones; i++ {
			a := b.newAttack(AttackAOE, now)
			jitter := geom.V(dice.Between(b.src, -aoeJitter, aoeJitter), dice.Between(b.src, -aoeJitter, aoeJitter))
			a.Pos = b.world.Clamp(b.pos.Add(heading.Scale(aoeSpacing*float64(i+1))).Add(jitter), 0)
			a.Radius = aoeRadius
			a.MaxRadius = aoeRadius
			a.Damage = b.damage(aoeDamage)
			a.ActivatesAt = now.Add(aoeWarning + time.Duration(i)*aoeStagger)
			a.ExpiresAt = a.ActivatesAt.Add(aoeActive)
		}
		b.nextAOE = now.Add(b.cooldown(aoeCooldown))
	}
	if !now.Before(b.nextCircle) {
		a := b.newAttack(AttackExpandingCircle, now)
		a.Pos = b.pos
		a.MaxRadius = circleRadius
		a.Damage = b.damage(circleDamage)
		a.ActivatesAt = now.Add(circleGrow)
		a.ExpiresAt = a.ActivatesAt.Add(circlePulse)
		b.nextCircle = now.Add(b.cooldown(circleCooldown))
	}
}
