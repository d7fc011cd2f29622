package combat

import (
	"math"

	"github.com/cory-johannsen/raid/internal/game/dice"
)

// DamageInput holds everything needed to resolve one damage instance.
type DamageInput struct {
	// Base is the raw damage of the hit before any attacker scaling.
	Base float64
	// Attack is the attacker's attack-power stat; each point adds 1% to Base.
	Attack float64
	// DefensePen is the attacker's defense-penetration stat.
	DefensePen float64
	// TargetDefense is the defender's defense stat.
	TargetDefense float64
	// CritRate is the attacker's crit-rate stat; crit probability is Effectiveness(CritRate).
	CritRate float64
	// CritDamage is the attacker's crit-damage stat; it biases the tier multiplier upward.
	CritDamage float64
	// DamageBoost is a flat amount added after attack scaling.
	DamageBoost float64
	// AttackMultiplier scales damage from buffs; 0 is treated as 1.
	AttackMultiplier float64
}

// DamageResult is the outcome of Resolve.
type DamageResult struct {
	Damage     int
	Crit       bool
	Tier       CritTier
	Multiplier float64 // crit or variance multiplier actually applied
}

// Resolve computes one damage instance.
//
// Pipeline: attack-power bonus, buff multiplier, flat damage boost, defense mitigation,
// then a crit roll (tiered multiplier) or a small non-crit variance in [1.00, 1.19].
//
// Precondition: src must be non-nil.
// Postcondition: Damage >= 1; Crit is true iff Tier != CritNone.
func Resolve(in DamageInput, src dice.Source) DamageResult {
	mult := in.AttackMultiplier
	if mult <= 0 {
		mult = 1
	}
	dmg := in.Base * (1 + math.Max(0, in.Attack)/100) * mult
	dmg += math.Max(0, in.DamageBoost)
	dmg = Mitigate(dmg, in.TargetDefense, in.DefensePen)

	res := DamageResult{Tier: CritNone}
	if dice.Chance(src, Effectiveness(in.CritRate)) {
		res.Crit = true
		res.Tier, res.Multiplier = rollCritTier(src, Effectiveness(in.CritDamage))
	} else {
		res.Multiplier = 1 + float64(src.Intn(20))/100
	}
	dmg *= res.Multiplier

	res.Damage = int(math.Floor(dmg))
	if res.Damage < 1 {
		res.Damage = 1
	}
	return res
}

// rollCritTier picks a tier by the fixed 50/35/15 distribution and draws a multiplier
// from its range, biased toward the top by bias in [0, 1).
func rollCritTier(src dice.Source, bias float64) (CritTier, float64) {
	roll := src.Intn(100)
	spec := critTiers[len(critTiers)-1]
	for _, s := range critTiers {
		if roll < s.weight {
			spec = s
			break
		}
		roll -= s.weight
	}
	u := src.Float64()
	u = 1 - (1-u)*(1-bias)
	return spec.tier, spec.min + (spec.max-spec.min)*u
}
