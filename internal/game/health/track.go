// Package health implements the boss's progressive multi-bar health ledger.
package health

import "math"

const (
	// BaseHP is the first bar's capacity for a single participant.
	BaseHP = 100.0
	// PlayerScaling multiplies the base capacity for every participant after the first.
	PlayerScaling = 1.5
	// BarGrowth multiplies the base capacity once per bar already defeated.
	BarGrowth = 1.69
)

// BaseCapacity returns the first bar's capacity for playerCount participants:
// BaseHP × PlayerScaling^(playerCount−1).
//
// Postcondition: playerCount < 1 is treated as 1.
func BaseCapacity(playerCount int) float64 {
	if playerCount < 1 {
		playerCount = 1
	}
	return BaseHP * math.Pow(PlayerScaling, float64(playerCount-1))
}

// BarCapacity returns the capacity of bar k (0-indexed): base × BarGrowth^k.
func BarCapacity(base float64, k int) float64 {
	if k < 0 {
		k = 0
	}
	return base * math.Pow(BarGrowth, float64(k))
}

// BarEvent records damage applied to one bar during a single ApplyDamage call.
type BarEvent struct {
	// Applied is the damage absorbed by the bar.
	Applied float64
	// BarDefeated is true when this application exhausted the bar.
	BarDefeated bool
	// NewCapacity is the refilled capacity when BarDefeated is true and another bar follows.
	NewCapacity float64
}

// Track is the multi-bar health ledger.
//
// Invariant: TotalDamage() + Overkill() equals the sum of all positive amounts applied.
// It is not safe for concurrent use; the owning room serialises access.
type Track struct {
	base         float64
	current      float64
	capacity     float64
	barsDefeated int
	rage         int
	maxBars      int
	total        float64
	overkill     float64
}

// NewTrack creates a Track scaled for playerCount participants.
// maxBars bounds the fight; 0 means bars refill forever.
//
// Postcondition: CurrentHP() == Capacity() == BaseCapacity(playerCount).
func NewTrack(playerCount, maxBars int) *Track {
	return NewTrackWithBase(BaseCapacity(playerCount), maxBars)
}

// NewTrackWithBase creates a Track whose first bar holds base HP.
//
// Precondition: base > 0; maxBars >= 0.
func NewTrackWithBase(base float64, maxBars int) *Track {
	if base <= 0 {
		panic("health.NewTrackWithBase: base must be > 0")
	}
	if maxBars < 0 {
		maxBars = 0
	}
	return &Track{base: base, current: base, capacity: base, maxBars: maxBars}
}

// ApplyDamage subtracts amount from the current bar, carrying any overflow into
// freshly refilled bars until the amount is spent or the final bar is exhausted.
//
// Postcondition: sum(Applied) over the returned events plus any overkill added by this
// call equals amount when amount > 0; returns nil when amount <= 0.
func (t *Track) ApplyDamage(amount float64) []BarEvent {
	if amount <= 0 {
		return nil
	}
	if t.Dead() {
		t.overkill += amount
		return nil
	}
	var events []BarEvent
	remaining := amount
	for remaining > 0 {
		applied := math.Min(remaining, t.current)
		t.current -= applied
		remaining -= applied
		t.total += applied
		ev := BarEvent{Applied: applied}
		if t.current <= 0 {
			t.current = 0
			t.barsDefeated++
			t.rage++
			ev.BarDefeated = true
			if t.maxBars > 0 && t.barsDefeated >= t.maxBars {
				events = append(events, ev)
				t.overkill += remaining
				return events
			}
			t.capacity = BarCapacity(t.base, t.barsDefeated)
			t.current = t.capacity
			ev.NewCapacity = t.capacity
		}
		events = append(events, ev)
	}
	return events
}

// Dead reports whether the final bar has been exhausted: current bar HP <= 0 and at
// least one bar has been defeated.
func (t *Track) Dead() bool {
	return t.current <= 0 && t.barsDefeated > 0
}

// CurrentHP returns the HP left in the current bar.
func (t *Track) CurrentHP() float64 { return t.current }

// Capacity returns the current bar's capacity.
func (t *Track) Capacity() float64 { return t.capacity }

// NextCapacity returns the capacity the next bar will have once the current one falls.
//
// Postcondition: Returns 0 when the current bar is the last one.
func (t *Track) NextCapacity() float64 {
	if t.maxBars > 0 && t.barsDefeated+1 >= t.maxBars {
		return 0
	}
	return BarCapacity(t.base, t.barsDefeated+1)
}

// Base returns the first bar's capacity.
func (t *Track) Base() float64 { return t.base }

// BarsDefeated returns the number of bars exhausted so far.
func (t *Track) BarsDefeated() int { return t.barsDefeated }

// Rage returns the rage counter.
func (t *Track) Rage() int { return t.rage }

// MaxBars returns the bar limit, 0 when unlimited.
func (t *Track) MaxBars() int { return t.maxBars }

// TotalDamage returns the damage absorbed by bars across the whole fight.
func (t *Track) TotalDamage() float64 { return t.total }

// Overkill returns damage that arrived after the final bar was exhausted.
func (t *Track) Overkill() float64 { return t.overkill }
