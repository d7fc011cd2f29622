package player

import (
	"errors"
	"fmt"
	"math"

	"github.com/cory-johannsen/raid/internal/game/character"
)

const (
	baseExperienceToLevel = 100
	experienceGrowth      = 1.25
	pointsPerLevel        = 3
	hpPerLevel            = 10
)

var (
	ErrNoStatPoints = errors.New("no stat points to allocate")
	ErrUnknownStat  = errors.New("unknown stat")
)

// Stats is a player's mutable stat block.
//
// Invariants: 0 <= HP <= MaxHP, 0 <= Mana <= MaxMana.
type Stats struct {
	Level             int     `json:"level" msgpack:"level"`
	Experience        int     `json:"experience" msgpack:"experience"`
	ExperienceToLevel int     `json:"experienceToLevel" msgpack:"experienceToLevel"`
	StatPoints        int     `json:"statPoints" msgpack:"statPoints"`
	MaxHP             float64 `json:"maxHp" msgpack:"maxHp"`
	HP                float64 `json:"hp" msgpack:"hp"`
	MaxMana           float64 `json:"maxMana" msgpack:"maxMana"`
	Mana              float64 `json:"mana" msgpack:"mana"`
	Attack            float64 `json:"attack" msgpack:"attack"`
	Defense           float64 `json:"defense" msgpack:"defense"`
	DefensePen        float64 `json:"defensePen" msgpack:"defensePen"`
	CritRate          float64 `json:"critRate" msgpack:"critRate"`
	CritDamage        float64 `json:"critDamage" msgpack:"critDamage"`
	AttackSpeed       float64 `json:"attackSpeed" msgpack:"attackSpeed"`
	DamageBoost       float64 `json:"damageBoost" msgpack:"damageBoost"`
	MoveSpeed         float64 `json:"moveSpeed" msgpack:"moveSpeed"`
}

// NewStats returns the level-1 stats for a character with full HP and mana.
func NewStats(b character.BaseStats) Stats {
	return Stats{
		Level:             1,
		ExperienceToLevel: baseExperienceToLevel,
		MaxHP:             b.MaxHP,
		HP:                b.MaxHP,
		MaxMana:           b.MaxMana,
		Mana:              b.MaxMana,
		Attack:            b.Attack,
		Defense:           b.Defense,
		DefensePen:        b.DefensePen,
		CritRate:          b.CritRate,
		CritDamage:        b.CritDamage,
		AttackSpeed:       b.AttackSpeed,
		DamageBoost:       b.DamageBoost,
		MoveSpeed:         b.MoveSpeed,
	}
}

// statGains is the increase granted by one allocated point.
var statGains = map[string]func(s *Stats){
	"attack":       func(s *Stats) { s.Attack += 2 },
	"defense":      func(s *Stats) { s.Defense += 1500 },
	"defense_pen":  func(s *Stats) { s.DefensePen += 1500 },
	"crit_rate":    func(s *Stats) { s.CritRate += 800 },
	"crit_damage":  func(s *Stats) { s.CritDamage += 1500 },
	"attack_speed": func(s *Stats) { s.AttackSpeed += 0.05 },
	"damage_boost": func(s *Stats) { s.DamageBoost++ },
	"max_hp":       func(s *Stats) { s.MaxHP += 15; s.HP += 15 },
	"max_mana":     func(s *Stats) { s.MaxMana += 10; s.Mana += 10 },
}

// AllocatableStats lists the stat names accepted by Allocate.
func AllocatableStats() []string {
	return []string{"attack", "defense", "defense_pen", "crit_rate", "crit_damage", "attack_speed", "damage_boost", "max_hp", "max_mana"}
}

// Allocate spends one stat point on name.
//
// Postcondition: On success exactly one point is spent and the named stat increases.
func (s *Stats) Allocate(name string) error {
	gain, ok := statGains[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStat, name)
	}
	if s.StatPoints <= 0 {
		return ErrNoStatPoints
	}
	s.StatPoints--
	gain(s)
	return nil
}

// GainExperience adds xp and applies any level-ups.
//
// Postcondition: Returns the number of levels gained; each grants three stat points
// and ten MaxHP (also healed).
func (s *Stats) GainExperience(xp int) int {
	if xp <= 0 {
		return 0
	}
	s.Experience += xp
	levels := 0
	for s.Experience >= s.ExperienceToLevel {
		s.Experience -= s.ExperienceToLevel
		s.Level++
		s.StatPoints += pointsPerLevel
		s.MaxHP += hpPerLevel
		s.HP += hpPerLevel
		s.ExperienceToLevel = int(math.Round(float64(s.ExperienceToLevel) * experienceGrowth))
		levels++
	}
	return levels
}
