package gameserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/dice"
)

type nopConn struct{}

func (nopConn) Send([]byte) error { return nil }
func (nopConn) Close() error      { return nil }

func TestUniqueCode_RegeneratesOnCollision(t *testing.T) {
	m := NewManager(Config{Registry: character.DefaultRegistry(), Ticks: NewTickSource(60)})
	seq := []string{"AAAAAA", "AAAAAA", "AAAAAA", "BBBBBB"}
	m.newCode = func(int) string {
		c := seq[0]
		seq = seq[1:]
		return c
	}

	first, err := m.CreateRoom("a", character.Oracle, 2, nopConn{})
	require.NoError(t, err)
	second, err := m.CreateRoom("b", character.Oracle, 2, nopConn{})
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", first.Room.Code)
	assert.Equal(t, "BBBBBB", second.Room.Code)
	assert.Empty(t, seq)
}

func TestGenerateCode_Alphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := generateCode(codeLength)
		require.Len(t, code, codeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeChars, r))
		}
	}
}

func TestRandomCode_DrawsFromSource(t *testing.T) {
	src := &dice.FixedSource{Ints: []int{0, 1, len(codeChars) - 1}}
	assert.Equal(t, string([]byte{codeChars[0], codeChars[1], codeChars[len(codeChars)-1], codeChars[len(codeChars)-1]}), randomCode(src, 4))
}
