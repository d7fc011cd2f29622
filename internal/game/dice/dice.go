// Package dice provides the randomness abstraction used by the raid simulation.
//
// Every random decision in combat, boss AI, and skill resolution draws from a
// Source so that tests can substitute a seeded or scripted implementation.
package dice

// Source is the randomness provider for simulation rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
	// Float64 returns a random float in [0, 1).
	Float64() float64
}

// Chance reports whether a roll against probability p succeeds.
//
// Postcondition: Returns false when p <= 0 and true when p >= 1 without drawing.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return src.Float64() < p
}

// Between returns a uniformly distributed value in [lo, hi).
//
// Precondition: lo <= hi.
func Between(src Source, lo, hi float64) float64 {
	return lo + (hi-lo)*src.Float64()
}

// Weighted picks an index from weights with probability proportional to its weight.
//
// Precondition: weights must be non-empty and sum to > 0; negative weights count as 0.
// Postcondition: Returns an index in [0, len(weights)).
func Weighted(src Source, weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		panic("dice.Weighted: weights must sum to > 0")
	}
	roll := src.Intn(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if roll < w {
			return i
		}
		roll -= w
	}
	return len(weights) - 1
}
