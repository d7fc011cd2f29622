// Package combat implements the raid damage model: stat effectiveness, damage
// resolution with critical tiers, and defense mitigation.
//
// Every function in this package is pure apart from the injected dice.Source and is
// safe to call concurrently.
package combat

import "math"

// EffectivenessK is the half-saturation constant of the effectiveness curve: a stat
// equal to EffectivenessK is worth exactly 0.5.
const EffectivenessK = 50000.0

// MaxMitigation caps the fraction of damage that defense can remove.
const MaxMitigation = 0.5

// Effectiveness converts a raw stat into a diminishing-returns multiplier in [0, 1).
//
// Postcondition: Returns 0 for stat <= 0; strictly increasing and asymptotic to 1 otherwise.
func Effectiveness(stat float64) float64 {
	if stat <= 0 {
		return 0
	}
	return stat / (EffectivenessK + stat)
}

// MitigationFactor returns the multiplier left after defense mitigation:
// 1 − max(0, f(defense) − f(pen)) × MaxMitigation.
//
// Postcondition: Returns a value in [1 − MaxMitigation, 1].
func MitigationFactor(defense, pen float64) float64 {
	diff := math.Max(0, Effectiveness(defense)-Effectiveness(pen))
	return 1 - diff*MaxMitigation
}

// Mitigate applies defense mitigation to amount.
//
// Precondition: amount >= 0.
// Postcondition: Returns a value in [amount × (1 − MaxMitigation), amount].
func Mitigate(amount, defense, pen float64) float64 {
	return amount * MitigationFactor(defense, pen)
}

// CritTier is the magnitude bucket of a critical hit.
type CritTier int

const (
	CritNone CritTier = iota
	CritSmall
	CritMedium
	CritBig
)

// String returns a human-readable tier label.
func (t CritTier) String() string {
	switch t {
	case CritNone:
		return "none"
	case CritSmall:
		return "small"
	case CritMedium:
		return "medium"
	case CritBig:
		return "big"
	default:
		return "unknown"
	}
}

type tierSpec struct {
	tier     CritTier
	weight   int // out of 100
	min, max float64
}

// critTiers is ordered by cumulative weight: 50 / 35 / 15.
var critTiers = [...]tierSpec{
	{tier: CritSmall, weight: 50, min: 1.5, max: 1.8},
	{tier: CritMedium, weight: 35, min: 1.8, max: 2.3},
	{tier: CritBig, weight: 15, min: 2.5, max: 3.2},
}

// TierRange returns the multiplier range for a crit tier.
//
// Postcondition: Returns (0, 0) for CritNone or unknown tiers.
func TierRange(t CritTier) (lo, hi float64) {
	for _, s := range critTiers {
		if s.tier == t {
			return s.min, s.max
		}
	}
	return 0, 0
}
