// Package character defines the playable raid characters: their element, role and
// base stat block, loaded from YAML.
package character

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ID identifies a playable character.
type ID string

const (
	Arcanist    ID = "arcanist"
	Vanguard    ID = "vanguard"
	Bloodreaver ID = "bloodreaver"
	Oracle      ID = "oracle"
	Gunslinger  ID = "gunslinger"
)

// Element is the elemental affinity of a character's attacks.
type Element string

const (
	ElementFire  Element = "fire"
	ElementEarth Element = "earth"
	ElementBlood Element = "blood"
	ElementHoly  Element = "holy"
	ElementWind  Element = "wind"
)

// BaseStats is the level-1 stat block of a character.
type BaseStats struct {
	MaxHP       float64 `yaml:"max_hp"`
	MaxMana     float64 `yaml:"max_mana"`
	Attack      float64 `yaml:"attack"`
	Defense     float64 `yaml:"defense"`
	DefensePen  float64 `yaml:"defense_pen"`
	CritRate    float64 `yaml:"crit_rate"`
	CritDamage  float64 `yaml:"crit_damage"`
	AttackSpeed float64 `yaml:"attack_speed"`
	DamageBoost float64 `yaml:"damage_boost"`
	MoveSpeed   float64 `yaml:"move_speed"`
}

// Definition is one playable character loaded from YAML.
type Definition struct {
	ID      ID        `yaml:"id"`
	Name    string    `yaml:"name"`
	Role    string    `yaml:"role"`
	Element Element   `yaml:"element"`
	Stats   BaseStats `yaml:"stats"`
}

// Validate checks that the definition satisfies basic invariants.
//
// Precondition: d must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, MaxHP >= 1, MaxMana >= 0,
// AttackSpeed > 0, MoveSpeed > 0 and no stat is negative.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("character: id must not be empty")
	}
	if d.Name == "" {
		return fmt.Errorf("character %q: name must not be empty", d.ID)
	}
	s := d.Stats
	if s.MaxHP < 1 {
		return fmt.Errorf("character %q: max_hp must be >= 1", d.ID)
	}
	if s.AttackSpeed <= 0 {
		return fmt.Errorf("character %q: attack_speed must be > 0", d.ID)
	}
	if s.MoveSpeed <= 0 {
		return fmt.Errorf("character %q: move_speed must be > 0", d.ID)
	}
	for name, v := range map[string]float64{
		"max_mana": s.MaxMana, "attack": s.Attack, "defense": s.Defense, "defense_pen": s.DefensePen,
		"crit_rate": s.CritRate, "crit_damage": s.CritDamage, "damage_boost": s.DamageBoost,
	} {
		if v < 0 {
			return fmt.Errorf("character %q: %s must be >= 0", d.ID, name)
		}
	}
	return nil
}

// LoadDefinitionFromBytes parses a single character definition from raw YAML bytes.
//
// Precondition: data must be valid YAML for a single Definition.
// Postcondition: Returns a validated *Definition, or an error.
func LoadDefinitionFromBytes(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing character YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}
