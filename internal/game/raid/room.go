// Package raid implements the per-room simulation: one boss, up to six players and
// the skill effects they create, advanced in a fixed order once per tick.
package raid

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/arena"
	"github.com/cory-johannsen/raid/internal/game/boss"
	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/geom"
	"github.com/cory-johannsen/raid/internal/game/player"
	"github.com/cory-johannsen/raid/internal/game/skill"
)

const (
	DefaultDuration   = 5 * time.Minute
	DefaultWeakness   = 1.25
	maxTickDelta      = 0.1
	damagePerXP       = 5
	spawnX            = 240
	spawnSpacing      = 90
	defaultWorldW     = 1600
	defaultWorldH     = 900
	defaultMaxBars    = 8
	defaultMaxPlayers = 6
)

// UnlimitedBars as Config.MaxBars removes the bar limit.
const UnlimitedBars = -1

var (
	ErrNoPlayers      = errors.New("raid needs at least one player")
	ErrTooManyPlayers = errors.New("too many players")
	ErrPlayerNotFound = errors.New("player not in raid")
	ErrRaidOver       = errors.New("raid is over")
	ErrDodgeNotReady  = errors.New("dodge not ready")
	ErrAttackNotReady = errors.New("attack not ready")
	ErrUnknownAttack  = errors.New("unknown attack kind")
	ErrInvalidAim     = errors.New("aim coordinates must be finite")
)

// Outcome names the side that won a completed raid.
type Outcome string

const (
	WinnerPlayers Outcome = "players"
	WinnerBoss    Outcome = "boss"
)

// Participant is a player entering the raid.
type Participant struct {
	ID        string
	Name      string
	Character character.ID
}

// Config parameterises a GameRoom. Zero fields take defaults.
type Config struct {
	World    geom.Rect
	Duration time.Duration
	MaxBars  int
	// Weakness lists the elements the boss takes extra damage from.
	Weakness           []character.Element
	WeaknessMultiplier float64
	Script             boss.Script
	Source             dice.Source
	Logger             *zap.Logger
}

// WithDefaults returns c with every zero field replaced by its default.
func (c Config) WithDefaults() Config {
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		c.World = geom.Rect{Width: defaultWorldW, Height: defaultWorldH}
	}
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	switch {
	case c.MaxBars == 0:
		c.MaxBars = defaultMaxBars
	case c.MaxBars < 0:
		c.MaxBars = 0
	}
	if c.Weakness == nil {
		c.Weakness = []character.Element{character.ElementFire, character.ElementHoly}
	}
	if c.WeaknessMultiplier <= 0 {
		c.WeaknessMultiplier = DefaultWeakness
	}
	if c.Source == nil {
		c.Source = dice.NewCryptoSource()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// GameRoom is the authoritative state of one raid. It is not safe for concurrent
// use: its owner serialises Tick and every Handle call.
type GameRoom struct {
	cfg     Config
	players *arena.Store[*player.Player]
	effects *arena.Store[*skill.Effect]
	boss    *boss.Boss
	src     dice.Source
	logger  *zap.Logger

	startedAt time.Time
	lastTick  time.Time
	tick      uint64
	nextID    int

	completed bool
	winner    Outcome
	endedAt   time.Time

	hits []Hit
}

// New starts a raid at now for the given participants.
//
// Precondition: registry must be non-nil.
// Postcondition: Returns ErrNoPlayers, ErrTooManyPlayers or a wrapped
// skill.ErrUnknownCharacter on invalid input.
func New(cfg Config, registry *character.Registry, parts []Participant, now time.Time) (*GameRoom, error) {
	if registry == nil {
		panic("raid.New: registry must be non-nil")
	}
	if len(parts) == 0 {
		return nil, ErrNoPlayers
	}
	if len(parts) > defaultMaxPlayers {
		return nil, fmt.Errorf("%w: %d", ErrTooManyPlayers, len(parts))
	}
	cfg.defaults()
	r := &GameRoom{
		cfg:       cfg,
		players:   arena.New[*player.Player](),
		effects:   arena.New[*skill.Effect](),
		src:       cfg.Source,
		logger:    cfg.Logger,
		startedAt: now,
		lastTick:  now,
	}
	r.boss = boss.New(boss.Config{
		World:   cfg.World,
		Players: len(parts),
		MaxBars: cfg.MaxBars,
		Script:  cfg.Script,
		Logger:  cfg.Logger,
	}, cfg.Source, now)

	top := cfg.World.Height/2 - spawnSpacing*float64(len(parts)-1)/2
	for i, part := range parts {
		def, ok := registry.Get(part.Character)
		if !ok {
			return nil, fmt.Errorf("participant %s: %w: %q", part.ID, skill.ErrUnknownCharacter, part.Character)
		}
		res, err := skill.New(part.Character, cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", part.ID, err)
		}
		p := player.New(player.Config{
			ID:         part.ID,
			Name:       part.Name,
			Definition: def,
			Resolver:   res,
			World:      cfg.World,
			Spawn:      geom.V(spawnX, top+spawnSpacing*float64(i)),
			NextID:     r.id,
		})
		if err := r.players.Insert(part.ID, p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// id hands out room-unique ids such as "e12" or "p3".
func (r *GameRoom) id(prefix string) string {
	r.nextID++
	return fmt.Sprintf("%s%d", prefix, r.nextID)
}

func (r *GameRoom) Completed() bool { return r.completed }
func (r *GameRoom) Winner() Outcome { return r.winner }
func (r *GameRoom) Boss() *boss.Boss { return r.boss }
func (r *GameRoom) StartedAt() time.Time { return r.startedAt }
func (r *GameRoom) PlayerCount() int { return r.players.Len() }

// Player returns the player with id.
func (r *GameRoom) Player(id string) (*player.Player, bool) {
	return r.players.Get(id)
}

// Tick advances the raid to now and returns the resulting snapshot. A completed
// raid is frozen: Tick only re-reports its final state.
func (r *GameRoom) Tick(now time.Time) Snapshot {
	r.hits = r.hits[:0]
	if r.completed {
		return r.snapshot(now)
	}
	dt := math.Min(math.Max(now.Sub(r.lastTick).Seconds(), 0), maxTickDelta)
	r.lastTick = now
	r.tick++

	r.updatePlayers(now, dt)
	r.bossAttacksVsPlayers()
	r.boss.Update(now, dt, r.targets())
	r.projectilesVsBoss(now)
	r.advanceEffects(now, dt)
	r.collideEffects(now)
	r.checkOutcome(now)
	return r.snapshot(now)
}

func (r *GameRoom) updatePlayers(now time.Time, dt float64) {
	r.players.Each(func(_ string, p *player.Player) {
		p.Update(now, dt)
	})
}

func (r *GameRoom) targets() []boss.Target {
	out := make([]boss.Target, 0, r.players.Len())
	r.players.Each(func(id string, p *player.Player) {
		out = append(out, boss.Target{ID: id, Pos: p.Pos(), Alive: p.Alive()})
	})
	return out
}

func (r *GameRoom) bossAttacksVsPlayers() {
	for _, a := range r.boss.Attacks() {
		if !a.Active {
			continue
		}
		r.players.Each(func(id string, p *player.Player) {
			if !p.Alive() || p.Invulnerable() || !a.Hits(p.Pos(), player.Radius) {
				return
			}
			if !a.MarkHit(id) {
				return
			}
			if taken := p.TakeDamage(a.Damage, r.boss.DefensePen()); taken > 0 {
				r.hits = append(r.hits, Hit{Target: id, Source: a.ID, Amount: taken})
			}
		})
	}
}

func (r *GameRoom) projectilesVsBoss(now time.Time) {
	if r.boss.Dead() {
		return
	}
	r.players.Each(func(_ string, p *player.Player) {
		for _, pr := range slices.Clone(p.Projectiles()) {
			if !geom.CirclesOverlap(pr.Pos, pr.Radius, r.boss.Pos(), r.boss.Radius()) {
				continue
			}
			r.damageBoss(p, pr.Damage, pr.ID, now)
			p.RemoveProjectile(pr.ID)
		}
	})
}

// damageBoss resolves base damage from owner against the boss and books it.
func (r *GameRoom) damageBoss(owner *player.Player, base float64, source string, now time.Time) {
	if r.boss.Dead() || base <= 0 {
		return
	}
	res := combat.Resolve(owner.DamageInput(base, r.boss.Defense(), now), r.src)
	amount := float64(res.Damage)
	if slices.Contains(r.cfg.Weakness, owner.Element) {
		amount = math.Floor(amount * r.cfg.WeaknessMultiplier)
	}
	barDefeated, _ := r.boss.TakeDamage(amount)
	owner.RecordDamage(amount, now)
	owner.GainExperience(int(amount) / damagePerXP)
	r.hits = append(r.hits, Hit{Target: "boss", Source: source, Amount: amount, Crit: res.Crit})
	if barDefeated {
		r.logger.Debug("boss bar defeated",
			zap.Int("bars", r.boss.Health().BarsDefeated()),
			zap.String("by", owner.ID),
		)
	}
}

func (r *GameRoom) advanceEffects(now time.Time, dt float64) {
	r.effects.RemoveIf(func(_ string, e *skill.Effect) bool {
		return e.Done || e.Expired(now)
	})
	r.effects.Each(func(_ string, e *skill.Effect) {
		if e.FollowOwner {
			if owner, ok := r.players.Get(e.OwnerID); ok {
				e.Pos = owner.Pos()
			}
			return
		}
		e.Pos = e.Pos.Add(e.Vel.Scale(dt))
	})
}

func (r *GameRoom) checkOutcome(now time.Time) {
	switch {
	case r.boss.Dead():
		r.complete(WinnerPlayers, now)
	case now.Sub(r.startedAt) >= r.cfg.Duration:
		r.complete(WinnerBoss, now)
	case r.allDead():
		r.complete(WinnerBoss, now)
	}
}

func (r *GameRoom) allDead() bool {
	for _, p := range r.players.Values() {
		if p.Alive() {
			return false
		}
	}
	return true
}

func (r *GameRoom) complete(w Outcome, now time.Time) {
	r.completed = true
	r.winner = w
	r.endedAt = now
	r.logger.Info("raid completed",
		zap.String("winner", string(w)),
		zap.Duration("elapsed", now.Sub(r.startedAt)),
		zap.Int("bars", r.boss.Health().BarsDefeated()),
	)
}

// Abort completes the raid immediately with the boss as winner.
func (r *GameRoom) Abort(now time.Time) {
	if !r.completed {
		r.complete(WinnerBoss, now)
	}
}

// RemovePlayer drops a departing player and the effects it owns.
//
// Postcondition: Returns false when id was not in the raid.
func (r *GameRoom) RemovePlayer(id string) bool {
	if !r.players.Remove(id) {
		return false
	}
	r.effects.RemoveIf(func(_ string, e *skill.Effect) bool { return e.OwnerID == id })
	return true
}
