package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// HookOnEnter is called as on_enter(room_id, character) after a character walks
// into a room. A string result is shown to that character.
const HookOnEnter = "on_enter"

// RoomInfo is what engine.world.room exposes about a room.
type RoomInfo struct {
	ID         string
	Title      string
	Properties map[string]string
}

// zoneVM is one zone's interpreter. An LState is single-threaded, so every
// use holds mu. L is nil once closed.
type zoneVM struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager keeps one sandboxed VM per zone. Hooks in the same zone run one at
// a time; different zones run in parallel.
type Manager struct {
	logger *zap.Logger

	mu    sync.RWMutex
	zones map[string]*zoneVM

	// Callbacks behind the engine.* modules. A nil callback makes its Lua
	// function a no-op.
	Broadcast   func(roomID, msg string)
	QueryRoom   func(roomID string) *RoomInfo
	RoomPlayers func(roomID string) []string
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("scripting"), zones: map[string]*zoneVM{}}
}

// luaFiles lists the *.lua files directly under dir in name order.
func luaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".lua" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// LoadZone builds a fresh VM for zoneID and runs every script in dir, each
// under its own limit. On success it replaces any VM the zone had; on failure
// the old VM stays in place.
func (m *Manager) LoadZone(zoneID, dir string, limit int) error {
	paths, err := luaFiles(dir)
	if err != nil {
		return fmt.Errorf("zone %s scripts: %w", zoneID, err)
	}

	L := NewSandboxedState()
	m.RegisterModules(L, zoneID)
	for _, path := range paths {
		if err := RunLimited(L, limit, func() error { return L.DoFile(path) }); err != nil {
			L.Close()
			return fmt.Errorf("zone %s: running %s: %w", zoneID, filepath.Base(path), err)
		}
	}

	m.mu.Lock()
	prev := m.zones[zoneID]
	m.zones[zoneID] = &zoneVM{L: L, limit: limit}
	m.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	m.logger.Debug("zone scripts loaded", zap.String("zone", zoneID), zap.Strings("files", paths))
	return nil
}

// CallHook calls the global function hook in zoneID's VM and returns its
// first result. A zone without scripts, a missing hook, a Lua error or an
// exhausted budget all yield LNil; errors are logged, never returned.
func (m *Manager) CallHook(zoneID, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	vm, ok := m.zones[zoneID]
	m.mu.RUnlock()
	if !ok {
		m.logger.Debug("no scripts for zone", zap.String("zone", zoneID), zap.String("hook", hook))
		return lua.LNil, nil
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.L == nil {
		return lua.LNil, nil
	}
	fn, isFn := vm.L.GetGlobal(hook).(*lua.LFunction)
	if !isFn {
		return lua.LNil, nil
	}

	L := vm.L
	err := RunLimited(L, vm.limit, func() error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		m.logger.Warn("lua hook failed",
			zap.String("zone", zoneID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// OnEnter runs on_enter for character arriving in roomID. It returns the
// hook's string result, or "" for anything else.
func (m *Manager) OnEnter(zoneID, roomID, character string) string {
	ret, _ := m.CallHook(zoneID, HookOnEnter, lua.LString(roomID), lua.LString(character))
	if s, ok := ret.(lua.LString); ok {
		return string(s)
	}
	return ""
}

func (m *Manager) HasZone(zoneID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zones[zoneID] != nil
}

// Close shuts every VM. Later hook calls return LNil.
func (m *Manager) Close() {
	m.mu.Lock()
	zones := m.zones
	m.zones = map[string]*zoneVM{}
	m.mu.Unlock()

	for _, vm := range zones {
		vm.close()
	}
}

func (vm *zoneVM) close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.L != nil {
		vm.L.Close()
		vm.L = nil
	}
}
