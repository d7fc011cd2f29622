package raid

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/raid/internal/game/geom"
	"github.com/cory-johannsen/raid/internal/game/player"
	"github.com/cory-johannsen/raid/internal/game/skill"
)

// AttackKind selects a basic attack.
type AttackKind = player.ProjectileKind

func (r *GameRoom) actor(id string) (*player.Player, error) {
	if r.completed {
		return nil, ErrRaidOver
	}
	p, ok := r.players.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p, nil
}

// HandleMovement latches the latest movement input for id.
func (r *GameRoom) HandleMovement(id string, in player.Input) error {
	p, err := r.actor(id)
	if err != nil {
		return err
	}
	p.HandleMovement(in)
	return nil
}

// HandleDodge starts a dodge for id.
func (r *GameRoom) HandleDodge(id string, now time.Time) error {
	p, err := r.actor(id)
	if err != nil {
		return err
	}
	if !p.Dodge(now) {
		return ErrDodgeNotReady
	}
	return nil
}

// HandleAttack issues a basic attack toward target.
func (r *GameRoom) HandleAttack(id string, kind AttackKind, target geom.Vec, now time.Time) error {
	if !target.Finite() {
		return fmt.Errorf("%w: %v", ErrInvalidAim, target)
	}
	p, err := r.actor(id)
	if err != nil {
		return err
	}
	var pr *player.Projectile
	switch kind {
	case player.Melee:
		pr = p.CreateMeleeAttack(target, now)
	case player.Ranged:
		pr = p.CreateRangedAttack(target, now)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAttack, kind)
	}
	if pr == nil {
		return ErrAttackNotReady
	}
	return nil
}

func (r *GameRoom) HandlePlayerSkill1(id string, aim *geom.Vec, now time.Time) error {
	return r.HandleSkill(id, skill.SlotSkill1, aim, now)
}

func (r *GameRoom) HandlePlayerSkill2(id string, aim *geom.Vec, now time.Time) error {
	return r.HandleSkill(id, skill.SlotSkill2, aim, now)
}

func (r *GameRoom) HandlePlayerUltimate(id string, aim *geom.Vec, now time.Time) error {
	return r.HandleSkill(id, skill.SlotUltimate, aim, now)
}

func (r *GameRoom) HandlePlayerRightClick(id string, aim *geom.Vec, now time.Time) error {
	return r.HandleSkill(id, skill.SlotRightClick, aim, now)
}

// HandleSkill resolves slot for id and applies the room-side consequences
// immediately: the effect joins the room and boss crowd control lands.
//
// Postcondition: On error nothing in the room changed.
func (r *GameRoom) HandleSkill(id string, slot skill.Slot, aim *geom.Vec, now time.Time) error {
	if aim != nil && !aim.Finite() {
		return fmt.Errorf("%w: %v", ErrInvalidAim, *aim)
	}
	p, err := r.actor(id)
	if err != nil {
		return err
	}
	var target geom.Vec
	if aim != nil {
		target = *aim
	}
	res := p.UseSkill(slot, p.Cast(now, target, aim != nil, r.boss.Pos()))
	if !res.OK {
		return res.Err
	}
	if e := res.Effect; e != nil {
		e.ID = r.id("e")
		if err := r.effects.Insert(e.ID, e); err != nil {
			return err
		}
	}
	if res.StunBoss > 0 {
		r.boss.Stun(res.StunBoss, now)
	}
	if res.SlowBoss > 0 {
		r.boss.Slow(res.SlowBoss, now)
	}
	return nil
}

// HandleAllocateStat spends one of id's stat points.
func (r *GameRoom) HandleAllocateStat(id, stat string) error {
	p, ok := r.players.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p.AllocateStat(stat)
}
