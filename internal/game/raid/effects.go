package raid

import (
	"math"
	"time"

	"github.com/cory-johannsen/raid/internal/game/geom"
	"github.com/cory-johannsen/raid/internal/game/player"
	"github.com/cory-johannsen/raid/internal/game/skill"
)

// collideEffects applies every live effect according to its kind, then drops the
// effects that were consumed.
func (r *GameRoom) collideEffects(now time.Time) {
	r.effects.Each(func(_ string, e *skill.Effect) {
		owner, ok := r.players.Get(e.OwnerID)
		if !ok || e.Done {
			return
		}
		switch e.Kind {
		case skill.KindArea:
			r.collideArea(owner, e, now)
		case skill.KindProjectile:
			if r.touchesBoss(e.Pos, e.Radius) {
				r.damageBoss(owner, e.Amount, e.ID, now)
				e.Done = true
			}
		case skill.KindBeam:
			if !e.HitBoss && geom.SegmentHitsCircle(e.Pos, e.BeamEnd(), e.Width, r.boss.Pos(), r.boss.Radius()) {
				r.damageBoss(owner, e.Amount, e.ID, now)
				e.MarkHit(now)
			}
		case skill.KindHealOrDamage:
			r.collideHealOrDamage(owner, e, now)
		case skill.KindApplication:
			r.apply(owner, e, now)
		}
	})
	r.effects.RemoveIf(func(_ string, e *skill.Effect) bool { return e.Done })
}

func (r *GameRoom) touchesBoss(pos geom.Vec, radius float64) bool {
	return !r.boss.Dead() && geom.CirclesOverlap(pos, radius, r.boss.Pos(), r.boss.Radius())
}

func (r *GameRoom) collideArea(owner *player.Player, e *skill.Effect, now time.Time) {
	e.Radius = e.RadiusAt(now)
	if e.CanHit(now) && r.touchesBoss(e.Pos, e.Radius) {
		r.damageBoss(owner, e.Amount, e.ID, now)
		e.MarkHit(now)
	}
}

// collideHealOrDamage heals the first ally touched, otherwise damages the boss.
func (r *GameRoom) collideHealOrDamage(owner *player.Player, e *skill.Effect, now time.Time) {
	amount := math.Abs(e.Amount)
	var healed bool
	r.players.Each(func(id string, p *player.Player) {
		if healed || id == e.OwnerID || !p.Alive() {
			return
		}
		if geom.CirclesOverlap(e.Pos, e.Radius, p.Pos(), player.Radius) {
			r.heal(owner, p, amount, e.ID, now)
			healed = true
		}
	})
	if healed {
		e.Done = true
		return
	}
	if r.touchesBoss(e.Pos, e.Radius) {
		r.damageBoss(owner, amount, e.ID, now)
		e.Done = true
	}
}

// apply heals and buffs every living player inside the effect once.
func (r *GameRoom) apply(owner *player.Player, e *skill.Effect, now time.Time) {
	r.players.Each(func(id string, p *player.Player) {
		if !p.Alive() || !geom.CirclesOverlap(e.Pos, e.Radius, p.Pos(), player.Radius) {
			return
		}
		if e.Amount < 0 {
			r.heal(owner, p, -e.Amount, e.ID, now)
		}
		if e.Buff != nil {
			p.AddBuff(e.Buff.Clone(now))
		}
	})
	e.Done = true
}

func (r *GameRoom) heal(healer, target *player.Player, amount float64, source string, now time.Time) {
	if h := target.Heal(amount); h > 0 {
		healer.RecordHealing(h, now)
		r.hits = append(r.hits, Hit{Target: target.ID, Source: source, Amount: h, Heal: true})
	}
}
