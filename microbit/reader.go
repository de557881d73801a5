package microbit

import (
	"fmt"
)

type ChunkState int

const (
	ChunkStateUnused ChunkState = iota
	ChunkStateFreed
	ChunkStateFileStart
	ChunkStateContinuation
	ChunkStateOrphan // Looks like a continuation but no file reaches it
	ChunkStateBroken // Part of a file whose chain couldn't be followed
	ChunkStateUnknown
)

func (s ChunkState) String() string {
	switch s {
	case ChunkStateUnused:
		return "unused"
	case ChunkStateFreed:
		return "freed"
	case ChunkStateFileStart:
		return "start"
	case ChunkStateContinuation:
		return "continuation"
	case ChunkStateOrphan:
		return "orphan"
	case ChunkStateBroken:
		return "broken"
	}
	return "unknown"
}

func (s ChunkState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Everything learned from walking the chunk region. Slices indexed by chunk
// are 1-based like the chunks themselves; index 0 is unused.
type ChunkScan struct {
	Layout     *Layout
	States     []ChunkState
	Owners     []int // Index into Files, or -1
	Files      []*File
	Persistent bool // Whether the persistent data marker is set
	Errors     []error
}

func (scan *ChunkScan) addError(format string, a ...any) {
	scan.Errors = append(scan.Errors, &FilesystemError{Message: fmt.Sprintf(format, a...)})
}

// Number of chunks in the given state
func (scan *ChunkScan) Count(state ChunkState) int {
	count := 0
	for _, s := range scan.States[1:] {
		if s == state {
			count++
		}
	}
	return count
}

// Pull every chunk of the region out of the image
func readChunks(img *Image, layout *Layout) ([][]byte, error) {
	cursor := &ImageCursor{Image: img, Address: layout.StartAddress, Limit: layout.LastPageAddress}
	pass := NewReadWriteErrorPass(cursor)
	chunks := make([][]byte, layout.ChunkCount+1)
	for i := 1; i <= layout.ChunkCount; i++ {
		chunks[i] = make([]byte, ChunkSize)
		pass.ReadPass(chunks[i])
	}
	return chunks, pass.IsPass()
}

// Walk the chunk region, reconstructing files. Problems are collected rather
// than returned so that damaged images can still be inspected.
func ScanChunks(img *Image, layout *Layout) *ChunkScan {
	scan := ChunkScan{
		Layout:     layout,
		States:     make([]ChunkState, layout.ChunkCount+1),
		Owners:     make([]int, layout.ChunkCount+1),
		Files:      make([]*File, 0),
		Persistent: img.Byte(layout.LastPageAddress) == ChunkPersistentData,
	}
	chunks, err := readChunks(img, layout)
	if err != nil {
		scan.Errors = append(scan.Errors, &FilesystemError{Message: "Couldn't read chunks", Err: err})
		return &scan
	}

	// Allocation is contiguous from the front, so the first unused chunk marks
	// the end of anything ever written
	scanEnd := layout.ChunkCount
	starts := make([]int, 0)
	for i := 1; i <= layout.ChunkCount; i++ {
		scan.Owners[i] = -1
		marker := chunks[i][0]
		switch {
		case marker == ChunkUnused:
			if scanEnd == layout.ChunkCount && i <= scanEnd {
				scanEnd = i - 1
			}
			scan.States[i] = ChunkStateUnused
		case marker == ChunkFreed:
			scan.States[i] = ChunkStateFreed
		case marker == ChunkFileStart:
			if i <= scanEnd {
				starts = append(starts, i)
			}
			scan.States[i] = ChunkStateFileStart
		case int(marker) <= MaxChunks:
			scan.States[i] = ChunkStateContinuation
		default:
			scan.States[i] = ChunkStateUnknown
		}
	}

	visited := make([]bool, layout.ChunkCount+1)
	names := make(map[string]bool)
	for _, start := range starts {
		file, chain, err := followChain(chunks, start, visited)
		if err != nil {
			for _, c := range chain {
				scan.States[c] = ChunkStateBroken
			}
			scan.Errors = append(scan.Errors, err)
			continue
		}
		for _, c := range chain {
			scan.Owners[c] = len(scan.Files)
		}
		if names[file.Name] {
			scan.addError("Duplicate file name: %s", file.Name)
		}
		names[file.Name] = true
		scan.Files = append(scan.Files, file)
	}

	for i := 1; i <= scanEnd; i++ {
		if scan.States[i] == ChunkStateContinuation && !visited[i] {
			scan.States[i] = ChunkStateOrphan
			scan.addError("Chunk %d continues chunk %d but no file reaches it", i, chunks[i][0])
		}
	}

	return &scan
}

// Follow one file from its start chunk. Returns the chunks visited in order,
// even on error.
func followChain(chunks [][]byte, start int, visited []bool) (*File, []int, error) {
	count := len(chunks) - 1
	chain := []int{start}
	visited[start] = true
	nameLength := int(chunks[start][1])
	if nameLength == 0 || nameLength > MaxFilenameSize {
		return nil, chain, &FilesystemError{
			Message: fmt.Sprintf("Chunk %d has invalid name length %d", start, nameLength),
		}
	}
	stream := make([]byte, 0, ChunkPayloadSize)
	current := start
	for {
		chunk := chunks[current]
		tail := int(chunk[ChunkTailOffset])
		if tail >= 1 && tail <= count && int(chunks[tail][0]) == current {
			if visited[tail] {
				return nil, chain, &FilesystemError{
					Message: fmt.Sprintf("Chunk %d loops back to chunk %d", current, tail),
				}
			}
			stream = append(stream, chunk[1:ChunkTailOffset]...)
			visited[tail] = true
			chain = append(chain, tail)
			current = tail
			continue
		}
		if tail >= 1 && tail <= ChunkPayloadSize {
			stream = append(stream, chunk[1:1+tail]...)
			break
		}
		return nil, chain, &FilesystemError{
			Message: fmt.Sprintf("Chunk %d has invalid tail %d", current, tail),
		}
	}
	if len(stream) < 2+nameLength {
		return nil, chain, &FilesystemError{
			Message: fmt.Sprintf("File at chunk %d ends before its content begins", start),
		}
	}
	return &File{
		Name:    string(stream[1 : 1+nameLength]),
		Content: stream[1+nameLength:],
	}, chain, nil
}

// Read every file stored in the image. An image with no files gives an empty
// list; any structural problem is a FilesystemError.
func ReadFiles(img *Image, info *DeviceInfo) ([]*File, error) {
	layout, err := NewLayout(img, info)
	if err != nil {
		return nil, err
	}
	scan := ScanChunks(img, layout)
	if len(scan.Errors) > 0 {
		return nil, scan.Errors[0]
	}
	return scan.Files, nil
}
