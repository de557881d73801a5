package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/randomouscrap98/upyfs/microbit"
)

const (
	AppVersion = "0.1.0"
)

// Quick way to fail on error, since most commands are "doing" something on
// behalf of something else.
func fatalIfErr(subject string, doing string, err error) {
	if err != nil {
		log.Fatalf("%s - Couldn't %s: %s", subject, doing, err)
	}
}

func forceCreate(fp string) *os.File {
	f, err := os.Create(fp)
	fatalIfErr(fp, "create write file", err)
	return f
}

// Load and detect a hex, or die trying
func loadHex(fp string) (*microbit.Image, *microbit.DeviceInfo, []byte) {
	raw, err := os.ReadFile(fp)
	fatalIfErr(fp, "read hex file", err)
	img, err := microbit.ParseHex(string(raw))
	fatalIfErr(fp, "parse hex", err)
	info, err := microbit.DetectDevice(img)
	fatalIfErr(fp, "detect MicroPython", err)
	log.Printf("Loaded %s: %s\n", fp, info.SmallString())
	return img, info, raw
}

func readFiles(fp string) (*microbit.Image, *microbit.DeviceInfo, []*microbit.File) {
	img, info, _ := loadHex(fp)
	files, err := microbit.ReadFiles(img, info)
	fatalIfErr(fp, "read filesystem", err)
	return img, info, files
}

// **********************************
// *         HEX COMMANDS           *
// **********************************

type InfoCmd struct {
	Hexfile string `arg:"" type:"existingfile" help:"MicroPython hex file"`
}

func (c *InfoCmd) Run() error {
	img, info, raw := loadHex(c.Hexfile)
	layout, err := microbit.NewLayout(img, info)
	fatalIfErr(c.Hexfile, "compute chunk layout", err)
	scan := microbit.ScanChunks(img, layout)
	used := layout.ChunkCount - scan.Count(microbit.ChunkStateUnused)
	result := make(map[string]interface{})
	result["Filename"] = c.Hexfile
	result["MD5"] = microbit.Md5String(raw)
	result["Device"] = info
	result["FsSize"] = info.FsSize()
	result["ChunkStartAddress"] = fmt.Sprintf("0x%08X", layout.StartAddress)
	result["PersistentPageAddress"] = fmt.Sprintf("0x%08X", layout.LastPageAddress)
	result["ChunkCount"] = layout.ChunkCount
	result["UsedChunks"] = used
	result["FreeChunks"] = layout.ChunkCount - used
	result["FileCount"] = len(scan.Files)
	result["MaxFileContent"] = layout.MaxContentSize(1)
	if len(scan.Errors) > 0 {
		problems := make([]string, 0, len(scan.Errors))
		for _, e := range scan.Errors {
			problems = append(problems, e.Error())
		}
		result["Problems"] = problems
	}
	printJson(result)
	return nil
}

type ListCmd struct {
	Hexfile string `arg:"" type:"existingfile" help:"MicroPython hex file"`
}

func (c *ListCmd) Run() error {
	_, _, files := readFiles(c.Hexfile)
	listing := make([]map[string]interface{}, 0, len(files))
	total := 0
	for _, f := range files {
		entry := make(map[string]interface{})
		entry["Name"] = f.Name
		entry["Size"] = f.Size()
		entry["SizeFS"] = f.SizeFS()
		entry["MD5"] = microbit.Md5String(f.Content)
		listing = append(listing, entry)
		total += f.Size()
	}
	log.Printf("Found %d files (%d bytes) in %s\n", len(files), total, c.Hexfile)
	result := make(map[string]interface{})
	result["Files"] = listing
	result["TotalSize"] = total
	printJson(result)
	return nil
}

type GetCmd struct {
	Hexfile  string `arg:"" type:"existingfile" help:"MicroPython hex file"`
	Outdir   string `type:"path" short:"o" default:"." help:"Directory to extract files into"`
	Filename string `short:"f" help:"Extract only this file"`
	Archive  string `type:"path" short:"z" help:"Write the files into this zip instead of a directory"`
	Force    bool   `help:"Overwrite existing files"`
}

func (c *GetCmd) Run() error {
	_, _, files := readFiles(c.Hexfile)
	if c.Filename != "" {
		selected := make([]*microbit.File, 0)
		for _, f := range files {
			if f.Name == c.Filename {
				selected = append(selected, f)
			}
		}
		if len(selected) == 0 {
			log.Fatalf("File not found in hex: %s\n", c.Filename)
		}
		files = selected
	}
	result := make(map[string]interface{})
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	result["Files"] = names
	if c.Archive != "" {
		if _, err := os.Stat(c.Archive); err == nil && !c.Force {
			log.Fatalf("Archive already exists: %s (use --force to overwrite)\n", c.Archive)
		}
		out := forceCreate(c.Archive)
		defer out.Close()
		err := microbit.WriteArchiveFiles(out, files)
		fatalIfErr(c.Archive, "write archive", err)
		log.Printf("Wrote %d files to archive %s\n", len(files), c.Archive)
		result["Archive"] = c.Archive
		printJson(result)
		return nil
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path, err := extractPath(c.Outdir, f.Name)
		fatalIfErr(c.Hexfile, "extract", err)
		paths = append(paths, path)
	}
	if !c.Force {
		existing := make([]string, 0)
		for i, f := range files {
			if _, err := os.Stat(paths[i]); err == nil {
				existing = append(existing, f.Name)
			}
		}
		if len(existing) > 0 {
			log.Fatalf("Files already exist: %s (use --force to overwrite)\n", strings.Join(existing, ", "))
		}
	}
	err := os.MkdirAll(c.Outdir, 0770)
	fatalIfErr(c.Outdir, "create output directory", err)
	for i, f := range files {
		err := os.WriteFile(paths[i], f.Content, 0660)
		fatalIfErr(paths[i], "write extracted file", err)
		log.Printf("Extracted: %s (%d bytes)\n", f.Name, f.Size())
	}
	result["Outdir"] = c.Outdir
	printJson(result)
	return nil
}

type AddCmd struct {
	Hexfile   string   `arg:"" type:"existingfile" help:"MicroPython hex file"`
	Files     []string `arg:"" optional:"" type:"existingfile" help:"Files to put on the filesystem"`
	Manifest  string   `type:"existingfile" short:"m" help:"Toml or yaml manifest listing files"`
	Script    string   `type:"existingfile" short:"s" help:"Lua script which adds files"`
	Arguments []string `short:"a" help:"Arguments passed to the lua script"`
	Archive   string   `type:"existingfile" short:"z" help:"Zip whose root files are added"`
	Keep      bool     `help:"Keep files already in the hex (new files with the same name replace them)"`
	Outfile   string   `type:"path" short:"o" help:"Output hex (default: <input>_output.hex)"`
}

// Gather the files from every source given, in a fixed order
func (c *AddCmd) collect() []*microbit.File {
	files := make([]*microbit.File, 0)
	for _, fp := range c.Files {
		content, err := os.ReadFile(fp)
		fatalIfErr(fp, "read file", err)
		f, err := microbit.NewFile(filepath.Base(fp), content)
		fatalIfErr(fp, "use file", err)
		files = append(files, f)
	}
	if c.Manifest != "" {
		mfiles, err := microbit.LoadManifestFiles(c.Manifest)
		fatalIfErr(c.Manifest, "load manifest", err)
		files = append(files, mfiles...)
	}
	if c.Archive != "" {
		afiles, err := microbit.LoadArchiveFiles(c.Archive)
		fatalIfErr(c.Archive, "load archive", err)
		files = append(files, afiles...)
	}
	if c.Script != "" {
		script, err := os.ReadFile(c.Script)
		fatalIfErr(c.Script, "read script", err)
		sfiles, logs, err := microbit.RunLuaFilesystemScript(string(script), c.Arguments, filepath.Dir(c.Script))
		if logs != "" {
			log.Printf("Script output:\n%s", logs)
		}
		fatalIfErr(c.Script, "run script", err)
		files = append(files, sfiles...)
	}
	return files
}

func (c *AddCmd) Run() error {
	img, info, _ := loadHex(c.Hexfile)
	files := c.collect()
	if c.Keep {
		existing, err := microbit.ReadFiles(img, info)
		fatalIfErr(c.Hexfile, "read existing files", err)
		replaced := make(map[string]bool)
		for _, f := range files {
			replaced[f.Name] = true
		}
		kept := make([]*microbit.File, 0, len(existing)+len(files))
		for _, f := range existing {
			if !replaced[f.Name] {
				kept = append(kept, f)
			}
		}
		log.Printf("Keeping %d of %d existing files\n", len(kept), len(existing))
		files = append(kept, files...)
	}
	for _, f := range files {
		log.Printf("Adding: %s (%d bytes)\n", f.Name, f.Size())
	}
	written, err := microbit.WriteFiles(img, info, files)
	fatalIfErr(c.Hexfile, "add files", err)
	if c.Outfile == "" {
		stem := strings.TrimSuffix(filepath.Base(c.Hexfile), filepath.Ext(c.Hexfile))
		c.Outfile = filepath.Join(filepath.Dir(c.Hexfile), stem+"_output.hex")
	}
	out := forceCreate(c.Outfile)
	defer out.Close()
	err = written.WriteHex(out)
	fatalIfErr(c.Outfile, "write hex", err)
	log.Printf("Written to: %s\n", c.Outfile)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	result := make(map[string]interface{})
	result["Outfile"] = c.Outfile
	result["Files"] = names
	result["UsedChunks"] = microbit.RequiredChunks(files)
	printJson(result)
	return nil
}

type ChunkmapCmd struct {
	Hexfile      string `arg:"" type:"existingfile" help:"MicroPython hex file"`
	Outfile      string `type:"path" short:"o" help:"Image to write (default: chunkmap_<time>.<format>)"`
	Format       string `enum:"png,gif,bmp,jpg,tif" default:"png" help:"Image format"`
	Scale        int    `default:"8" help:"Pixels per chunk"`
	NoCaption    bool   `help:"Don't write the device summary above the map"`
	Unused       string `default:"#202020" help:"Color for unused chunks"`
	Freed        string `default:"#606060" help:"Color for freed chunks"`
	Start        string `default:"#3080ff" help:"Color for file start chunks"`
	Continuation string `default:"#70c0ff" help:"Color for continuation chunks"`
	Orphan       string `default:"#ff8000" help:"Color for unreachable continuation chunks"`
	Broken       string `default:"#ff2020" help:"Color for chunks of unreadable files"`
}

func (c *ChunkmapCmd) Run() error {
	img, info, _ := loadHex(c.Hexfile)
	layout, err := microbit.NewLayout(img, info)
	fatalIfErr(c.Hexfile, "compute chunk layout", err)
	scan := microbit.ScanChunks(img, layout)
	colors := microbit.DefaultChunkMapColors()
	colors.Unused = c.Unused
	colors.Freed = c.Freed
	colors.FileStart = c.Start
	colors.Continuation = c.Continuation
	colors.Orphan = c.Orphan
	colors.Broken = c.Broken
	caption := ""
	if !c.NoCaption {
		caption = fmt.Sprintf("%s %d/%d", info.DeviceVersion, layout.ChunkCount-scan.Count(microbit.ChunkStateUnused), layout.ChunkCount)
	}
	rendered, err := microbit.RenderChunkMap(scan, colors, c.Scale, caption)
	fatalIfErr("chunkmap", "render", err)
	if c.Outfile == "" {
		c.Outfile = chunkMapFilename(c.Format, time.Now())
	}
	out := forceCreate(c.Outfile)
	defer out.Close()
	err = microbit.WriteChunkMap(rendered, c.Format, out)
	fatalIfErr(c.Outfile, "write chunk map", err)
	result := make(map[string]interface{})
	result["Outfile"] = c.Outfile
	result["ChunkCount"] = layout.ChunkCount
	result["States"] = scan.States[1:]
	printJson(result)
	return nil
}

// **********************************
// *       DEVICES COMMANDS         *
// **********************************

type ScanCmd struct {
	Probe bool `help:"Ask each board's REPL for its MicroPython version (interrupts running code)"`
}

func (c *ScanCmd) Run() error {
	boards, err := microbit.GetBoards()
	fatalIfErr("scan", "pull devices", err)
	log.Printf("Scan found %d micro:bit boards\n", len(boards))
	if c.Probe {
		for _, b := range boards {
			if err := microbit.ProbeBoard(b); err != nil {
				log.Printf("Couldn't probe %s: %s\n", b.SmallString(), err)
			}
		}
	}
	printJson(boards)
	return nil
}

// **********************************
// *    ALL TOGETHER COMMANDS       *
// **********************************

var cli struct {
	Info     InfoCmd          `cmd:"" help:"Show device layout and filesystem usage of a MicroPython hex"`
	List     ListCmd          `cmd:"" help:"List files stored in a MicroPython hex"`
	Get      GetCmd           `cmd:"" help:"Extract files from a MicroPython hex"`
	Add      AddCmd           `cmd:"" help:"Replace the filesystem of a MicroPython hex with the given files"`
	Chunkmap ChunkmapCmd      `cmd:"" help:"Draw chunk usage of the filesystem as an image"`
	Scan     ScanCmd          `cmd:"" help:"Search for attached micro:bit boards"`
	Version  kong.VersionFlag `help:"Show version information"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("upyfs"),
		kong.ShortUsageOnError(),
		kong.Description("Inject and extract files from micro:bit MicroPython hex files"),
		kong.Vars{
			"version": AppVersion,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
