package scripting

import (
	"errors"
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/boss"
)

// HookBarDefeated is the Lua global called each time the boss loses a bar:
//
//	function on_bar_defeated(bars_defeated, rage) return haste end
const HookBarDefeated = "on_bar_defeated"

// ErrClosed is returned by hooks of a closed script.
var ErrClosed = errors.New("scripting: script closed")

// Manager compiles one boss script and instantiates a private VM per room.
//
// Manager is safe for concurrent use.
type Manager struct {
	limit  int
	logger *zap.Logger

	mu    sync.Mutex
	path  string
	proto *lua.FunctionProto
	live  map[string]*BossScript
}

// NewManager creates a Manager with no script loaded.
//
// Precondition: logger must be non-nil; limit <= 0 selects DefaultInstructionLimit.
// Postcondition: NewScript returns a nil script until Load succeeds.
func NewManager(limit int, logger *zap.Logger) *Manager {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	return &Manager{
		limit:  limit,
		logger: logger,
		live:   make(map[string]*BossScript),
	}
}

// Load parses and compiles the Lua file at path, then runs it once in a scratch
// VM so top-level errors surface here rather than in a room.
//
// Precondition: path must be a readable Lua file.
// Postcondition: On error the previously loaded script, if any, stays active.
func (m *Manager) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("scripting: opening %q: %w", path, err)
	}
	defer f.Close()

	chunk, err := parse.Parse(f, path)
	if err != nil {
		return fmt.Errorf("scripting: parsing %q: %w", path, err)
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return fmt.Errorf("scripting: compiling %q: %w", path, err)
	}

	trial, err := m.instantiate(proto, "")
	if err != nil {
		return fmt.Errorf("scripting: loading %q: %w", path, err)
	}
	trial.Close()

	m.mu.Lock()
	m.path = path
	m.proto = proto
	m.mu.Unlock()
	m.logger.Info("boss script loaded", zap.String("path", path))
	return nil
}

// NewScript returns a fresh script instance for roomCode, or a nil script when
// nothing is loaded. Its signature matches gameserver.ScriptFactory.
//
// Postcondition: A non-nil script must be released with Close.
func (m *Manager) NewScript(roomCode string) (boss.Script, error) {
	m.mu.Lock()
	proto := m.proto
	m.mu.Unlock()
	if proto == nil {
		return nil, nil
	}
	s, err := m.instantiate(proto, roomCode)
	if err != nil {
		return nil, fmt.Errorf("scripting: room %s: %w", roomCode, err)
	}
	m.mu.Lock()
	m.live[roomCode] = s
	m.mu.Unlock()
	return s, nil
}

// Live returns the number of open room scripts.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Path returns the loaded script path, or "" when none is loaded.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

func (m *Manager) instantiate(proto *lua.FunctionProto, room string) (*BossScript, error) {
	L := NewSandboxedState()
	m.registerModules(L, room)
	err := RunLimited(L, m.limit, func() error {
		L.Push(L.NewFunctionFromProto(proto))
		return L.PCall(0, lua.MultRet, nil)
	})
	if err != nil {
		L.Close()
		return nil, err
	}
	L.SetTop(0)
	return &BossScript{m: m, room: room, L: L}, nil
}

func (m *Manager) forget(s *BossScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live[s.room] == s {
		delete(m.live, s.room)
	}
}

// BossScript is one room's Lua VM. It implements boss.Script and io.Closer.
type BossScript struct {
	m    *Manager
	room string

	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

var _ boss.Script = (*BossScript)(nil)

// OnBarDefeated calls the on_bar_defeated hook. A script without the hook, or
// one that returns nil, yields 0, which the boss ignores.
//
// Postcondition: Lua errors, instruction-limit overruns and non-numeric results
// are returned as errors and leave the VM usable.
func (s *BossScript) OnBarDefeated(barsDefeated, rage int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	fn := s.L.GetGlobal(HookBarDefeated)
	if fn.Type() != lua.LTFunction {
		return 0, nil
	}
	err := RunLimited(s.L, s.m.limit, func() error {
		return s.L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, lua.LNumber(barsDefeated), lua.LNumber(rage))
	})
	if err != nil {
		s.L.SetTop(0)
		return 0, fmt.Errorf("scripting: %s in room %s: %w", HookBarDefeated, s.room, err)
	}

	ret := s.L.Get(-1)
	s.L.Pop(1)
	switch v := ret.(type) {
	case lua.LNumber:
		return float64(v), nil
	case *lua.LNilType:
		return 0, nil
	default:
		return 0, fmt.Errorf("scripting: %s returned %s, want number", HookBarDefeated, ret.Type())
	}
}

// Close releases the VM. It is safe to call more than once.
func (s *BossScript) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.L.Close()
	s.mu.Unlock()
	s.m.forget(s)
	return nil
}
