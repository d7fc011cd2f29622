package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the engine table:
//
//	engine.room        room code the script is bound to
//	engine.log(msg)    writes msg to the server log at info level
//
// Precondition: L must be from NewSandboxedState.
func (m *Manager) registerModules(L *lua.LState, room string) {
	engine := L.NewTable()
	L.SetField(engine, "room", lua.LString(room))
	L.SetField(engine, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Info("boss script",
			zap.String("room", room),
			zap.String("msg", L.CheckString(1)),
		)
		return 0
	}))
	L.SetGlobal("engine", engine)
}
