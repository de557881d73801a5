package microbit

// Lua build scripts which decide which files go on the filesystem.

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"

	lua "github.com/yuin/gopher-lua"
)

// Tracking for an entire lua build script
type ScriptState struct {
	FileDirectory string
	Arguments     []string
	Files         []*File
	Logs          strings.Builder
}

// Get full path to given file requested by the script. Relative paths are
// relative to the script's own directory.
func (state *ScriptState) FilePath(path string) string {
	if state.FileDirectory == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(state.FileDirectory, path)
}

// Add a function to the given lua state that actually tracks with our own state.
// Usually lua functions don't accept extra go parameters
func (state *ScriptState) AddFunction(name string, f func(*lua.LState, *ScriptState) int, L *lua.LState) {
	L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int { return f(L, state) }))
}

// -----------------------------
//          READERS
// -----------------------------

// Read an entire file. Yes, that's already possible in lua, whatever
func luaFile(L *lua.LState, state *ScriptState) int {
	filename := state.FilePath(L.ToString(1))
	bytes, err := os.ReadFile(filename)
	if err != nil {
		L.RaiseError("Error reading file %s in lua script: %s", filename, err)
		return 0
	}
	log.Printf("Read %d bytes from file %s in lua script", len(bytes), filename)
	L.Push(lua.LString(string(bytes)))
	return 1
}

// Pull the files out of an existing MicroPython hex, as a list of
// { name = ..., content = ... }
func luaHexFiles(L *lua.LState, state *ScriptState) int {
	filename := state.FilePath(L.ToString(1))
	raw, err := os.ReadFile(filename)
	if err != nil {
		L.RaiseError("Error reading hex %s in lua script: %s", filename, err)
		return 0
	}
	files, err := GetFiles(string(raw))
	if err != nil {
		L.RaiseError("Error reading files from hex %s: %s", filename, err)
		return 0
	}
	result := L.CreateTable(len(files), 0)
	for _, f := range files {
		entry := L.CreateTable(0, 2)
		entry.RawSetString("name", lua.LString(f.Name))
		entry.RawSetString("content", lua.LString(string(f.Content)))
		result.Append(entry)
	}
	log.Printf("Read %d files from hex %s in lua script", len(files), filename)
	L.Push(result)
	return 1
}

// Get basic info about the entries in a directory, in "filesystem" order
func luaListDir(L *lua.LState, state *ScriptState) int {
	path := state.FilePath(L.ToString(1))
	entries, err := os.ReadDir(path)
	if err != nil {
		L.RaiseError("Couldn't read directory: %s", err)
		return 0
	}
	var result lua.LTable
	for i, entry := range entries {
		var entrytable lua.LTable
		name := entry.Name()
		thispath := filepath.Join(path, name)
		fullpath, err := filepath.Abs(thispath)
		if err != nil {
			L.RaiseError("Couldn't get abs path of %s: %s", thispath, err)
			return 0
		}
		entrytable.RawSetString("name", lua.LString(name))
		entrytable.RawSetString("path", lua.LString(fullpath))
		entrytable.RawSetString("is_directory", lua.LBool(entry.IsDir()))
		result.RawSetInt(i+1, &entrytable)
	}
	L.Push(&result)
	return 1
}

// Lua function turning an encoded string into the raw bytes it holds,
// returned as a lua string
func luaByteDecoder(encoding string, decode func(string) ([]byte, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		raw, err := decode(L.CheckString(1))
		if err != nil {
			L.RaiseError("Bad %s string in script: %s", encoding, err)
			return 0
		}
		log.Printf("Script decoded %s into %d bytes", encoding, len(raw))
		L.Push(lua.LString(raw))
		return 1
	}
}

// Lua function parsing a document into nested lua tables
func luaDocumentDecoder(format string, parse func(string) (interface{}, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		value, err := parse(L.CheckString(1))
		if err != nil {
			L.RaiseError("Bad %s document in script: %s", format, err)
			return 0
		}
		L.Push(toLuaValue(L, value))
		return 1
	}
}

func parseJsonDocument(doc string) (interface{}, error) {
	var value interface{}
	err := json.Unmarshal([]byte(doc), &value)
	return value, err
}

func parseTomlDocument(doc string) (interface{}, error) {
	tree, err := toml.Load(doc)
	if err != nil {
		return nil, err
	}
	return tree.ToMap(), nil
}

// Decoded json and toml values become lua values; toml adds int64 and
// arrays of tables to what json gives. Anything else is nil.
func toLuaValue(L *lua.LState, value interface{}) lua.LValue {
	switch v := value.(type) {
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case float64:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case map[string]interface{}:
		table := L.CreateTable(0, len(v))
		for key, item := range v {
			table.RawSetString(key, toLuaValue(L, item))
		}
		return table
	case []interface{}:
		list := L.CreateTable(len(v), 0)
		for _, item := range v {
			list.Append(toLuaValue(L, item))
		}
		return list
	case []map[string]interface{}:
		list := L.CreateTable(len(v), 0)
		for _, item := range v {
			list.Append(toLuaValue(L, item))
		}
		return list
	}
	return lua.LNil
}

// -----------------------------
//          WRITERS
// -----------------------------

// Queue a file for the filesystem: add(name, content). Invalid files and
// repeated names stop the script.
func luaAdd(L *lua.LState, state *ScriptState) int {
	name := L.ToString(1)
	content := L.ToString(2)
	file, err := NewTextFile(name, content)
	if err != nil {
		L.RaiseError("Can't add file: %s", err)
		return 0
	}
	for _, f := range state.Files {
		if f.Name == name {
			L.RaiseError("Can't add file: Duplicate file name: %s", name)
			return 0
		}
	}
	state.Files = append(state.Files, file)
	log.Printf("Added file %s (%d bytes, %d chunks) in lua script", name, file.Size(), file.ChunkCount())
	L.Push(lua.LNumber(file.SizeFS()))
	return 1
}

// Names of everything added so far, in order
func luaFiles(L *lua.LState, state *ScriptState) int {
	result := L.CreateTable(len(state.Files), 0)
	for _, f := range state.Files {
		result.Append(lua.LString(f.Name))
	}
	L.Push(result)
	return 1
}

// Everything passed to log is joined with tabs and kept, one line per call
func luaLog(L *lua.LState, state *ScriptState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	line := strings.Join(parts, "\t")
	state.Logs.WriteString(line)
	state.Logs.WriteString("\n")
	log.Printf("[lua] %s", line)
	return 0
}

func luaArguments(L *lua.LState, state *ScriptState) int {
	for _, a := range state.Arguments {
		L.Push(lua.LString(a))
	}
	return len(state.Arguments)
}

func setBasicLuaFunctions(L *lua.LState) {
	L.SetGlobal("hex", L.NewFunction(luaByteDecoder("hex", hex.DecodeString)))
	L.SetGlobal("base64", L.NewFunction(luaByteDecoder("base64", base64.StdEncoding.DecodeString)))
	L.SetGlobal("json", L.NewFunction(luaDocumentDecoder("json", parseJsonDocument)))
	L.SetGlobal("toml", L.NewFunction(luaDocumentDecoder("toml", parseTomlDocument)))
}

// Run a lua build script, returning the files it added (in order) and
// everything it logged.
func RunLuaFilesystemScript(script string, arguments []string, dir string) ([]*File, string, error) {
	state := ScriptState{
		FileDirectory: dir,
		Arguments:     arguments,
		Files:         make([]*File, 0),
	}

	L := lua.NewState()
	defer L.Close()

	setBasicLuaFunctions(L)
	state.AddFunction("file", luaFile, L)
	state.AddFunction("hexfiles", luaHexFiles, L)
	state.AddFunction("listdir", luaListDir, L)
	state.AddFunction("add", luaAdd, L)
	state.AddFunction("files", luaFiles, L)
	state.AddFunction("log", luaLog, L)
	state.AddFunction("arguments", luaArguments, L)

	err := L.DoString(script)
	if err != nil {
		return nil, state.Logs.String(), fmt.Errorf("Lua script failed: %w", err)
	}

	return state.Files, state.Logs.String(), nil
}
