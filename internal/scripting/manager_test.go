package scripting_test

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/raid/internal/scripting"
)

func newTestManager(t testing.TB, limit int) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return scripting.NewManager(limit, zap.New(core)), logs
}

func writeTempLua(t testing.TB, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boss.lua")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestManager_NoScriptLoaded_NilScript(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	s, err := mgr.NewScript("ABC234")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, 0, mgr.Live())
}

func TestManager_OnBarDefeated_ReturnsHaste(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	require.NoError(t, mgr.Load(writeTempLua(t, `
		function on_bar_defeated(bars, rage)
			return 1 + bars * 0.1 + rage * 0.05
		end
	`)))
	s, err := mgr.NewScript("ABC234")
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.(io.Closer).Close()

	h, err := s.OnBarDefeated(2, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.3, h, 1e-9)
}

func TestManager_RoomsHaveIsolatedState(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	require.NoError(t, mgr.Load(writeTempLua(t, `
		calls = 0
		function on_bar_defeated(bars, rage)
			calls = calls + 1
			return calls
		end
	`)))
	a, err := mgr.NewScript("AAAAAA")
	require.NoError(t, err)
	b, err := mgr.NewScript("BBBBBB")
	require.NoError(t, err)
	assert.Equal(t, 2, mgr.Live())

	for i := 0; i < 3; i++ {
		_, err = a.OnBarDefeated(i+1, i+1)
		require.NoError(t, err)
	}
	h, err := b.OnBarDefeated(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, h, "room B must not see room A's globals")

	require.NoError(t, a.(io.Closer).Close())
	require.NoError(t, a.(io.Closer).Close(), "close is idempotent")
	assert.Equal(t, 1, mgr.Live())
	_, err = a.OnBarDefeated(4, 4)
	assert.ErrorIs(t, err, scripting.ErrClosed)
	require.NoError(t, b.(io.Closer).Close())
	assert.Equal(t, 0, mgr.Live())
}

func TestManager_MissingHookOrNilResult_Zero(t *testing.T) {
	for name, src := range map[string]string{
		"no hook":    `-- nothing here`,
		"nil result": `function on_bar_defeated(b, r) end`,
	} {
		t.Run(name, func(t *testing.T) {
			mgr, _ := newTestManager(t, 0)
			require.NoError(t, mgr.Load(writeTempLua(t, src)))
			s, err := mgr.NewScript("ROOM22")
			require.NoError(t, err)
			defer s.(io.Closer).Close()
			h, err := s.OnBarDefeated(1, 1)
			require.NoError(t, err)
			assert.Zero(t, h)
		})
	}
}

func TestManager_HookErrors(t *testing.T) {
	for name, src := range map[string]string{
		"runtime error": `function on_bar_defeated() error("intentional error") end`,
		"not a number":  `function on_bar_defeated() return "fast" end`,
		"runaway loop":  `function on_bar_defeated() while true do end end`,
	} {
		t.Run(name, func(t *testing.T) {
			mgr, _ := newTestManager(t, 1000)
			require.NoError(t, mgr.Load(writeTempLua(t, src)))
			s, err := mgr.NewScript("ROOM22")
			require.NoError(t, err)
			defer s.(io.Closer).Close()
			h, err := s.OnBarDefeated(1, 1)
			assert.Error(t, err)
			assert.Zero(t, h)
		})
	}
}

func TestManager_VMUsableAfterHookError(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	require.NoError(t, mgr.Load(writeTempLua(t, `
		function on_bar_defeated(bars)
			if bars == 1 then error("first bar") end
			return bars
		end
	`)))
	s, err := mgr.NewScript("ROOM22")
	require.NoError(t, err)
	defer s.(io.Closer).Close()

	_, err = s.OnBarDefeated(1, 1)
	require.Error(t, err)
	h, err := s.OnBarDefeated(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, h)
}

func TestManager_Load_Errors(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	assert.Error(t, mgr.Load(filepath.Join(t.TempDir(), "missing.lua")))
	assert.Error(t, mgr.Load(writeTempLua(t, `this is not valid lua @@@@`)))
	assert.Error(t, mgr.Load(writeTempLua(t, `error("top level")`)))
	assert.Empty(t, mgr.Path())

	good := writeTempLua(t, `function on_bar_defeated() return 2 end`)
	require.NoError(t, mgr.Load(good))
	require.Error(t, mgr.Load(writeTempLua(t, `@@`)))
	assert.Equal(t, good, mgr.Path(), "failed reload keeps the previous script")
}

func TestManager_EngineModule(t *testing.T) {
	mgr, logs := newTestManager(t, 0)
	require.NoError(t, mgr.Load(writeTempLua(t, `
		function on_bar_defeated(bars)
			engine.log("bar " .. bars .. " down in " .. engine.room)
			return 1
		end
	`)))
	s, err := mgr.NewScript("QWE234")
	require.NoError(t, err)
	defer s.(io.Closer).Close()
	_, err = s.OnBarDefeated(3, 3)
	require.NoError(t, err)

	entries := logs.FilterMessage("boss script").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bar 3 down in QWE234", entries[0].ContextMap()["msg"])
	assert.Equal(t, "QWE234", entries[0].ContextMap()["room"])
}

func TestManager_ConcurrentRooms_NoRace(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	require.NoError(t, mgr.Load(writeTempLua(t, `
		function on_bar_defeated(bars, rage) return bars + rage end
	`)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := mgr.NewScript(string(rune('A' + i)))
			if !assert.NoError(t, err) {
				return
			}
			defer s.(io.Closer).Close()
			for b := 1; b <= 8; b++ {
				h, err := s.OnBarDefeated(b, b)
				assert.NoError(t, err)
				assert.Equal(t, float64(2*b), h)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, mgr.Live())
}

func TestProperty_HookMatchesFormula(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	require.NoError(t, mgr.Load(writeTempLua(t, `
		function on_bar_defeated(bars, rage) return 1 + 0.25 * bars - 0.125 * rage end
	`)))
	s, err := mgr.NewScript("PROP22")
	require.NoError(t, err)
	defer s.(io.Closer).Close()

	rapid.Check(t, func(rt *rapid.T) {
		bars := rapid.IntRange(0, 64).Draw(rt, "bars")
		rage := rapid.IntRange(0, 64).Draw(rt, "rage")
		h, err := s.OnBarDefeated(bars, rage)
		if err != nil {
			rt.Fatalf("hook failed: %v", err)
		}
		want := 1 + 0.25*float64(bars) - 0.125*float64(rage)
		if h != want {
			rt.Fatalf("bars=%d rage=%d: got %v want %v", bars, rage, h, want)
		}
	})
}
