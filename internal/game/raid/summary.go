package raid

import (
	"sort"
	"time"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/player"
)

// Summary describes a finished raid.
type Summary struct {
	Winner       Outcome         `json:"winner" msgpack:"winner"`
	StartedAt    time.Time       `json:"startedAt" msgpack:"startedAt"`
	EndedAt      time.Time       `json:"endedAt" msgpack:"endedAt"`
	Duration     float64         `json:"duration" msgpack:"duration"`
	BossDamage   float64         `json:"bossDamage" msgpack:"bossDamage"`
	Overkill     float64         `json:"overkill" msgpack:"overkill"`
	BarsDefeated int             `json:"barsDefeated" msgpack:"barsDefeated"`
	Players      []PlayerSummary `json:"players" msgpack:"players"`
}

// PlayerSummary is one player's contribution to a raid.
type PlayerSummary struct {
	ID        string       `json:"id" msgpack:"id"`
	Name      string       `json:"name" msgpack:"name"`
	Character character.ID `json:"character" msgpack:"character"`
	Damage    float64      `json:"damage" msgpack:"damage"`
	Healing   float64      `json:"healing" msgpack:"healing"`
	Level     int          `json:"level" msgpack:"level"`
	Alive     bool         `json:"alive" msgpack:"alive"`
}

// Summary reports the outcome of a completed raid, players ordered by damage.
//
// Postcondition: Returns false while the raid is still running.
func (r *GameRoom) Summary() (Summary, bool) {
	if !r.completed {
		return Summary{}, false
	}
	h := r.boss.Health()
	s := Summary{
		Winner:       r.winner,
		StartedAt:    r.startedAt,
		EndedAt:      r.endedAt,
		Duration:     r.endedAt.Sub(r.startedAt).Seconds(),
		BossDamage:   h.TotalDamage(),
		Overkill:     h.Overkill(),
		BarsDefeated: h.BarsDefeated(),
	}
	r.players.Each(func(_ string, p *player.Player) {
		s.Players = append(s.Players, PlayerSummary{
			ID:        p.ID,
			Name:      p.Name,
			Character: p.Character,
			Damage:    p.TotalDamage(),
			Healing:   p.TotalHealing(),
			Level:     p.Stats().Level,
			Alive:     p.Alive(),
		})
	})
	sort.SliceStable(s.Players, func(i, j int) bool { return s.Players[i].Damage > s.Players[j].Damage })
	return s, true
}
