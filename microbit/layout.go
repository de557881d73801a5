package microbit

import (
	"fmt"
)

// Where the chunks actually go inside the filesystem region. Chunk 1 starts
// at StartAddress; the page at LastPageAddress is never allocated, its first
// byte belongs to the persistent data marker.
type Layout struct {
	StartAddress    uint32
	LastPageAddress uint32
	PageSize        uint32
	ChunkCount      int
}

// Whether a legacy V1 appended script sits at its fixed address
func HasAppendedScript(img *Image) bool {
	return string(img.Slice(AppendedScriptAddress, len(AppendedScriptMagic))) == AppendedScriptMagic
}

func NewLayout(img *Image, info *DeviceInfo) (*Layout, error) {
	page := info.FlashPageSize
	end := info.FsEndAddress
	if info.DeviceVersion == DeviceV1 {
		// The top V1 page is reserved for calibration data
		if HasAppendedScript(img) && AppendedScriptAddress < end {
			end = AppendedScriptAddress
		}
		end -= page
	}
	if end < info.FsStartAddress+2*page {
		return nil, &FilesystemError{
			Message: fmt.Sprintf("Filesystem region 0x%X-0x%X is too small", info.FsStartAddress, end),
		}
	}
	lastPage := end - page
	start := info.FsStartAddress
	// No more than MaxChunks may be addressable, and chunks start on a page
	if end > MaxChunks*ChunkSize && end-MaxChunks*ChunkSize > start {
		start = uint32(AlignWidth(uint(end-MaxChunks*ChunkSize), uint(page)))
	}
	if start%page != 0 || start >= lastPage {
		return nil, &FilesystemError{
			Message: fmt.Sprintf("Filesystem start address 0x%X is not usable", start),
		}
	}
	return &Layout{
		StartAddress:    start,
		LastPageAddress: lastPage,
		PageSize:        page,
		ChunkCount:      int((lastPage - start) / ChunkSize),
	}, nil
}

// Address of the 1-based chunk index
func (l *Layout) ChunkAddress(index int) uint32 {
	return l.StartAddress + uint32(index-1)*ChunkSize
}

// The largest single file content that fits with a name of the given length
func (l *Layout) MaxContentSize(nameLength int) int {
	return l.ChunkCount*ChunkPayloadSize - 1 - nameLength
}

// Total bytes of chunk storage, including markers and tails
func (l *Layout) Size() int {
	return l.ChunkCount * ChunkSize
}
