package microbit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunLuaFilesystemScript_Arguments(t *testing.T) {
	script := `
a, b, c = arguments()
log(a, b, c)
  `
	arguments := []string{"what", "how", "this -- is == weird"}
	files, logs, err := RunLuaFilesystemScript(script, arguments, "")
	require.NoError(t, err)
	require.Empty(t, files)
	require.Equal(t, "what\thow\tthis -- is == weird\n", logs)
}

func TestRunLuaFilesystemScript_Add(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('from disk')"), 0660))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "lib"), 0770))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "one.py"), []byte("one"), 0660))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "two.py"), []byte("two"), 0660))
	script := `
add("main.py", file("main.py"))
for _, entry in ipairs(listdir("lib")) do
  if not entry.is_directory then
    add(entry.name, file(entry.path))
  end
end
local settings = toml("speed = 3\nname = 'bot'")
add("settings.txt", settings.name .. "=" .. settings.speed)
local config = json('{"items":[1,2,3]}')
add("count.txt", tostring(#config.items))
add("raw.bin", hex("FEFF00"))
add("b64.txt", base64("aGVsbG8="))
local size = add("sized.py", "x")
log(size)
log(table.concat(files(), ","))
`
	files, logs, err := RunLuaFilesystemScript(script, nil, dir)
	require.NoError(t, err)
	names := make([]string, 0)
	for _, f := range files {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"main.py", "one.py", "two.py", "settings.txt", "count.txt", "raw.bin", "b64.txt", "sized.py"}, names)
	require.Equal(t, "print('from disk')", files[0].Text())
	require.Equal(t, "bot=3", files[3].Text())
	require.Equal(t, "3", files[4].Text())
	require.Equal(t, []byte{0xFE, 0xFF, 0x00}, files[5].Content)
	require.Equal(t, "hello", files[6].Text())
	require.Equal(t, "128\nmain.py,one.py,two.py,settings.txt,count.txt,raw.bin,b64.txt,sized.py\n", logs)
}

func TestRunLuaFilesystemScript_Errors(t *testing.T) {
	_, _, err := RunLuaFilesystemScript(`add("a.py", "1") add("a.py", "2")`, nil, "")
	require.ErrorContains(t, err, "Duplicate")
	_, _, err = RunLuaFilesystemScript(`add("a.py", "")`, nil, "")
	require.ErrorContains(t, err, "cannot be empty")
	_, _, err = RunLuaFilesystemScript(`file("does_not_exist.py")`, nil, t.TempDir())
	require.Error(t, err)
	_, _, err = RunLuaFilesystemScript(`this is not lua`, nil, "")
	require.Error(t, err)
	_, _, err = RunLuaFilesystemScript(`hex("zz")`, nil, "")
	require.ErrorContains(t, err, "Bad hex string")
	_, _, err = RunLuaFilesystemScript(`json("{nope")`, nil, "")
	require.ErrorContains(t, err, "Bad json document")
}

func TestRunLuaFilesystemScript_HexFiles(t *testing.T) {
	dir := t.TempDir()
	hexdata, err := AddFiles(mustHex(makeV1Image(), t), []*File{
		mustFile("keep.py", []byte("kept"), t),
		mustFile("drop.py", []byte("dropped"), t),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.hex"), []byte(hexdata), 0660))
	script := `
for _, f in ipairs(hexfiles("old.hex")) do
  if f.name ~= "drop.py" then
    add(f.name, f.content)
  end
end
`
	files, _, err := RunLuaFilesystemScript(script, nil, dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "keep.py", files[0].Name)
	require.Equal(t, "kept", files[0].Text())
}
