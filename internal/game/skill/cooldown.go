package skill

import "time"

// cooldown tracks when a slot becomes usable again.
type cooldown struct {
	duration time.Duration
	readyAt  time.Time
}

func (c *cooldown) ready(now time.Time) bool {
	return !now.Before(c.readyAt)
}

func (c *cooldown) start(now time.Time) {
	c.readyAt = now.Add(c.duration)
}

// fraction returns the remaining share of the cooldown in [0, 1].
func (c *cooldown) fraction(now time.Time) float64 {
	if c.duration <= 0 || c.ready(now) {
		return 0
	}
	f := float64(c.readyAt.Sub(now)) / float64(c.duration)
	if f > 1 {
		return 1
	}
	return f
}

// kit holds the cooldown of every slot and the shared gate logic.
type kit struct {
	cds map[Slot]*cooldown
}

func newKit(skill1, skill2, ult, right time.Duration) kit {
	return kit{cds: map[Slot]*cooldown{
		SlotSkill1:     {duration: skill1},
		SlotSkill2:     {duration: skill2},
		SlotUltimate:   {duration: ult},
		SlotRightClick: {duration: right},
	}}
}

// gate returns the rejection reason for an activation, or nil when it may proceed.
// It never mutates state.
func (k *kit) gate(slot Slot, c Cast, mana float64) error {
	if !k.cds[slot].ready(c.Now) {
		return ErrOnCooldown
	}
	if c.Mana < mana {
		return ErrInsufficientMana
	}
	return nil
}

func (k *kit) commit(slot Slot, now time.Time) {
	k.cds[slot].start(now)
}

// Cooldowns reports the remaining cooldown fraction of every slot.
func (k *kit) Cooldowns(now time.Time) Cooldowns {
	out := make(Cooldowns, len(k.cds))
	for s, cd := range k.cds {
		out[s] = cd.fraction(now)
	}
	return out
}
