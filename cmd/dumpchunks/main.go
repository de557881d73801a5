package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/randomouscrap98/upyfs/microbit"
)

var stateColors = map[microbit.ChunkState]*color.Color{
	microbit.ChunkStateFreed:        color.New(color.Faint),
	microbit.ChunkStateFileStart:    color.New(color.FgGreen, color.Bold),
	microbit.ChunkStateContinuation: color.New(color.FgCyan),
	microbit.ChunkStateOrphan:       color.New(color.FgYellow),
	microbit.ChunkStateBroken:       color.New(color.FgRed, color.Bold),
	microbit.ChunkStateUnknown:      color.New(color.FgMagenta),
}

func main() {
	// Check if a filename is provided as a command-line argument
	if len(os.Args) != 2 {
		fmt.Println("Usage: go run main.go <hexfile>")
		return
	}

	filename := os.Args[1]
	file, err := os.Open(filename)
	if err != nil {
		fmt.Println("Error opening file:", err)
		return
	}
	defer file.Close()

	img, err := microbit.LoadHex(file)
	if err != nil {
		fmt.Println("Error parsing hex:", err)
		return
	}
	info, err := microbit.DetectDevice(img)
	if err != nil {
		fmt.Println("Error detecting device:", err)
		return
	}
	layout, err := microbit.NewLayout(img, info)
	if err != nil {
		fmt.Println("Error computing layout:", err)
		return
	}
	scan := microbit.ScanChunks(img, layout)

	// Create a new directory to store the found chunks
	outputDir := "found_chunks"
	err = os.Mkdir(outputDir, 0755)
	if err != nil && !os.IsExist(err) {
		fmt.Println("Error creating output directory:", err)
		return
	}

	chunkCounter := 0
	for i := 1; i <= layout.ChunkCount; i++ {
		if scan.States[i] == microbit.ChunkStateUnused {
			continue
		}
		address := layout.ChunkAddress(i)
		chunkFilename := filepath.Join(outputDir, fmt.Sprintf("chunk_%03d_%s.bin", i, scan.States[i]))
		err = os.WriteFile(chunkFilename, img.Slice(address, microbit.ChunkSize), 0644)
		if err != nil {
			fmt.Println("Error writing chunk to file:", err)
			return
		}
		stateColors[scan.States[i]].Printf("%3d 0x%08X %s\n", i, address, scan.States[i])
		chunkCounter++
	}
	for _, e := range scan.Errors {
		color.Red("Problem: %s", e)
	}

	fmt.Printf("Found and saved %d chunks of %d to directory '%s'\n", chunkCounter, layout.ChunkCount, outputDir)
}
