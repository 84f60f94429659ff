package manifest

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxLuaVM restricts a Lua VM so manifests stay declarative.
// Removed capabilities:
// - system access (os.execute, os.exit, os.getenv)
// - filesystem access (io.open, io.popen)
// - code loading (require, dofile, loadfile, load, loadstring)
// - the debug library, which could reach around the sandbox
//
// string, table, math and the basic utilities (type, tostring,
// tonumber, pairs, ipairs) remain available.
func sandboxLuaVM(L *lua.LState) {
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)

	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)

	L.SetGlobal("debug", lua.LNil)
}

// newSandboxedVM creates a Lua state with sandboxing applied. This is
// the only way manifest code obtains a VM.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
