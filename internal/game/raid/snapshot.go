package raid

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/boss"
	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/geom"
	"github.com/cory-johannsen/raid/internal/game/player"
	"github.com/cory-johannsen/raid/internal/game/skill"
)

// Snapshot is the full per-tick state broadcast to every participant.
type Snapshot struct {
	Tick        uint64           `json:"tick" msgpack:"tick"`
	Time        int64            `json:"time" msgpack:"time"`
	Elapsed     float64          `json:"elapsed" msgpack:"elapsed"`
	Remaining   float64          `json:"remaining" msgpack:"remaining"`
	Completed   bool             `json:"completed" msgpack:"completed"`
	Winner      Outcome          `json:"winner,omitempty" msgpack:"winner,omitempty"`
	Boss        BossView         `json:"boss" msgpack:"boss"`
	Players     []PlayerView     `json:"players" msgpack:"players"`
	Projectiles []ProjectileView `json:"projectiles" msgpack:"projectiles"`
	Effects     []EffectView     `json:"effects" msgpack:"effects"`
	Attacks     []AttackView     `json:"attacks" msgpack:"attacks"`
	Hits        []Hit            `json:"hits,omitempty" msgpack:"hits,omitempty"`
}

// BossView is the boss part of a snapshot.
type BossView struct {
	Pos          geom.Vec `json:"pos" msgpack:"pos"`
	Radius       float64  `json:"radius" msgpack:"radius"`
	HP           float64  `json:"hp" msgpack:"hp"`
	MaxHP        float64  `json:"maxHp" msgpack:"maxHp"`
	NextMaxHP    float64  `json:"nextMaxHp" msgpack:"nextMaxHp"`
	BarsDefeated int      `json:"barsDefeated" msgpack:"barsDefeated"`
	MaxBars      int      `json:"maxBars" msgpack:"maxBars"`
	Rage         int      `json:"rage" msgpack:"rage"`
	Stunned      bool     `json:"stunned" msgpack:"stunned"`
	Slowed       bool     `json:"slowed" msgpack:"slowed"`
	Dead         bool     `json:"dead" msgpack:"dead"`
}

// PlayerView is one player in a snapshot.
type PlayerView struct {
	ID        string          `json:"id" msgpack:"id"`
	Name      string          `json:"name" msgpack:"name"`
	Character character.ID    `json:"character" msgpack:"character"`
	Pos       geom.Vec        `json:"pos" msgpack:"pos"`
	Facing    geom.Vec        `json:"facing" msgpack:"facing"`
	Alive     bool            `json:"alive" msgpack:"alive"`
	Dodging   bool            `json:"dodging" msgpack:"dodging"`
	Stats     player.Stats    `json:"stats" msgpack:"stats"`
	Buffs     []BuffView      `json:"buffs,omitempty" msgpack:"buffs,omitempty"`
	Cooldowns skill.Cooldowns `json:"cooldowns" msgpack:"cooldowns"`
	Damage    float64         `json:"damage" msgpack:"damage"`
	Healing   float64         `json:"healing" msgpack:"healing"`
	DPS       float64         `json:"dps" msgpack:"dps"`
	HPS       float64         `json:"hps" msgpack:"hps"`
}

// BuffView is a buff in a snapshot.
type BuffView struct {
	Type      skill.BuffType `json:"type" msgpack:"type"`
	Remaining float64        `json:"remaining" msgpack:"remaining"`
}

// ProjectileView is a basic attack in a snapshot.
type ProjectileView struct {
	ID      string                `json:"id" msgpack:"id"`
	OwnerID string                `json:"ownerId" msgpack:"ownerId"`
	Kind    player.ProjectileKind `json:"kind" msgpack:"kind"`
	Pos     geom.Vec              `json:"pos" msgpack:"pos"`
	Radius  float64               `json:"radius" msgpack:"radius"`
}

// EffectView is a skill effect in a snapshot.
type EffectView struct {
	ID       string           `json:"id" msgpack:"id"`
	OwnerID  string           `json:"ownerId" msgpack:"ownerId"`
	Type     skill.EffectType `json:"type" msgpack:"type"`
	Kind     string           `json:"kind" msgpack:"kind"`
	Pos      geom.Vec         `json:"pos" msgpack:"pos"`
	Radius   float64          `json:"radius" msgpack:"radius"`
	Angle    float64          `json:"angle" msgpack:"angle"`
	Length   float64          `json:"length,omitempty" msgpack:"length,omitempty"`
	Width    float64          `json:"width,omitempty" msgpack:"width,omitempty"`
	Stacks   int              `json:"stacks,omitempty" msgpack:"stacks,omitempty"`
	Progress float64          `json:"progress" msgpack:"progress"`
}

// AttackView is a boss attack in a snapshot.
type AttackView struct {
	ID     string          `json:"id" msgpack:"id"`
	Kind   boss.AttackKind `json:"kind" msgpack:"kind"`
	Pos    geom.Vec        `json:"pos" msgpack:"pos"`
	Angle  float64         `json:"angle" msgpack:"angle"`
	Length float64         `json:"length,omitempty" msgpack:"length,omitempty"`
	Width  float64         `json:"width,omitempty" msgpack:"width,omitempty"`
	Radius float64         `json:"radius" msgpack:"radius"`
	Active bool            `json:"active" msgpack:"active"`
}

// Hit is one damage or heal number produced during a tick.
type Hit struct {
	Target string  `json:"target" msgpack:"target"`
	Source string  `json:"source" msgpack:"source"`
	Amount float64 `json:"amount" msgpack:"amount"`
	Crit   bool    `json:"crit,omitempty" msgpack:"crit,omitempty"`
	Heal   bool    `json:"heal,omitempty" msgpack:"heal,omitempty"`
}

func (r *GameRoom) snapshot(now time.Time) Snapshot {
	ref := now
	if r.completed {
		ref = r.endedAt
	}
	elapsed := ref.Sub(r.startedAt)
	h := r.boss.Health()
	s := Snapshot{
		Tick:      r.tick,
		Time:      now.UnixMilli(),
		Elapsed:   elapsed.Seconds(),
		Remaining: max(0, (r.cfg.Duration - elapsed).Seconds()),
		Completed: r.completed,
		Winner:    r.winner,
		Boss: BossView{
			Pos:          r.boss.Pos(),
			Radius:       r.boss.Radius(),
			HP:           h.CurrentHP(),
			MaxHP:        h.Capacity(),
			NextMaxHP:    h.NextCapacity(),
			BarsDefeated: h.BarsDefeated(),
			MaxBars:      h.MaxBars(),
			Rage:         h.Rage(),
			Stunned:      r.boss.Stunned(now),
			Slowed:       r.boss.Slowed(now),
			Dead:         r.boss.Dead(),
		},
		Players:     make([]PlayerView, 0, r.players.Len()),
		Projectiles: []ProjectileView{},
		Effects:     make([]EffectView, 0, r.effects.Len()),
		Attacks:     make([]AttackView, 0, len(r.boss.Attacks())),
	}
	r.players.Each(func(id string, p *player.Player) {
		s.Players = append(s.Players, playerView(p, now))
		for _, pr := range p.Projectiles() {
			s.Projectiles = append(s.Projectiles, ProjectileView{
				ID: pr.ID, OwnerID: pr.OwnerID, Kind: pr.Kind, Pos: pr.Pos, Radius: pr.Radius,
			})
		}
	})
	r.effects.Each(func(id string, e *skill.Effect) {
		s.Effects = append(s.Effects, EffectView{
			ID:       id,
			OwnerID:  e.OwnerID,
			Type:     e.Type,
			Kind:     e.Kind.String(),
			Pos:      e.Pos,
			Radius:   e.RadiusAt(now),
			Angle:    e.Angle,
			Length:   e.Length,
			Width:    e.Width,
			Stacks:   e.Stacks,
			Progress: e.Progress(now),
		})
	})
	for _, a := range r.boss.Attacks() {
		s.Attacks = append(s.Attacks, AttackView{
			ID: a.ID, Kind: a.Kind, Pos: a.Pos, Angle: a.Angle, Length: a.Length,
			Width: a.Width, Radius: a.Radius, Active: a.Active,
		})
	}
	if len(r.hits) > 0 {
		s.Hits = append([]Hit(nil), r.hits...)
	}
	return s
}

func playerView(p *player.Player, now time.Time) PlayerView {
	v := PlayerView{
		ID:        p.ID,
		Name:      p.Name,
		Character: p.Character,
		Pos:       p.Pos(),
		Facing:    p.Facing(),
		Alive:     p.Alive(),
		Dodging:   p.Dodging(),
		Stats:     p.Stats(),
		Cooldowns: p.Resolver().Cooldowns(now),
		Damage:    p.TotalDamage(),
		Healing:   p.TotalHealing(),
		DPS:       p.DPS(now),
		HPS:       p.HPS(now),
	}
	for _, b := range p.Buffs() {
		v.Buffs = append(v.Buffs, BuffView{Type: b.Type, Remaining: b.ExpiresAt.Sub(now).Seconds()})
	}
	return v
}
