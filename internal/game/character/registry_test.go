package character_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/raid/internal/game/character"
)

func TestDefaultRegistry_HasAllCharacters(t *testing.T) {
	r := character.DefaultRegistry()
	for _, id := range []character.ID{
		character.Arcanist, character.Vanguard, character.Bloodreaver, character.Oracle, character.Gunslinger,
	} {
		def, ok := r.Get(id)
		require.True(t, ok, "missing %s", id)
		assert.NoError(t, def.Validate())
	}
	assert.Len(t, r.All(), 5)
}

func TestLoadDefinitionFromBytes_Invalid(t *testing.T) {
	_, err := character.LoadDefinitionFromBytes([]byte("id: x\nname: X\nstats:\n  max_hp: 0\n"))
	assert.Error(t, err)

	_, err = character.LoadDefinitionFromBytes([]byte("id: [unterminated"))
	assert.Error(t, err)
}

func TestValidate_RejectsNegativeStat(t *testing.T) {
	def := &character.Definition{
		ID: "x", Name: "X",
		Stats: character.BaseStats{MaxHP: 10, AttackSpeed: 1, MoveSpeed: 100, Defense: -1},
	}
	assert.ErrorContains(t, def.Validate(), "defense")
}

func TestLoadDirectory_OverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	yaml := `id: oracle
name: Oracle Prime
element: holy
stats:
  max_hp: 300
  max_mana: 200
  attack_speed: 1
  move_speed: 200
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oracle.yaml"), []byte(yaml), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	r, err := character.LoadDirectory(dir)
	require.NoError(t, err)
	def, ok := r.Get(character.Oracle)
	require.True(t, ok)
	assert.Equal(t, "Oracle Prime", def.Name)
	assert.Equal(t, 300.0, def.Stats.MaxHP)
	_, ok = r.Get(character.Vanguard)
	assert.True(t, ok, "built-ins not overridden remain available")
}

func TestLoadDirectory_MissingDir(t *testing.T) {
	_, err := character.LoadDirectory(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
