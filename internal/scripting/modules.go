package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers all engine.* Lua tables into L:
//
//	engine.log.debug/info/warn/error(msg)
//	engine.world.room(room_id)    -> {id=, title=, properties={}} or nil
//	engine.world.players(room_id) -> array of character names
//	engine.broadcast(room_id, msg)
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState, zoneID string) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.newLogModule(L, zoneID))
	L.SetField(engine, "world", m.newWorldModule(L))
	L.SetField(engine, "broadcast", L.NewFunction(m.luaBroadcast))
	L.SetGlobal("engine", engine)
}

func (m *Manager) newLogModule(L *lua.LState, zoneID string) *lua.LTable {
	logger := m.logger.With(zap.String("zone", zoneID))
	levels := map[string]func(string, ...zap.Field){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	}
	mod := L.NewTable()
	for name, logFn := range levels {
		logFn := logFn
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			logFn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func (m *Manager) newWorldModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "room", L.NewFunction(func(L *lua.LState) int {
		roomID := L.CheckString(1)
		if m.QueryRoom == nil {
			L.Push(lua.LNil)
			return 1
		}
		info := m.QueryRoom(roomID)
		if info == nil {
			L.Push(lua.LNil)
			return 1
		}
		t := L.NewTable()
		L.SetField(t, "id", lua.LString(info.ID))
		L.SetField(t, "title", lua.LString(info.Title))
		props := L.NewTable()
		for k, v := range info.Properties {
			L.SetField(props, k, lua.LString(v))
		}
		L.SetField(t, "properties", props)
		L.Push(t)
		return 1
	}))
	L.SetField(mod, "players", L.NewFunction(func(L *lua.LState) int {
		roomID := L.CheckString(1)
		t := L.NewTable()
		if m.RoomPlayers != nil {
			for _, name := range m.RoomPlayers(roomID) {
				t.Append(lua.LString(name))
			}
		}
		L.Push(t)
		return 1
	}))
	return mod
}

func (m *Manager) luaBroadcast(L *lua.LState) int {
	roomID := L.CheckString(1)
	msg := L.CheckString(2)
	if m.Broadcast != nil {
		m.Broadcast(roomID, msg)
	}
	return 0
}
