package microbit

import (
	"fmt"
)

// Sum of chunks needed for all the files
func RequiredChunks(files []*File) int {
	total := 0
	for _, f := range files {
		total += f.ChunkCount()
	}
	return total
}

// Erase the chunk region: bytes present in the image become 0xFF, absent
// bytes stay absent.
func eraseChunks(img *Image, layout *Layout) {
	for a := layout.StartAddress; a < layout.LastPageAddress; a++ {
		if img.Has(a) {
			img.Set(a, ChunkUnused)
		}
	}
}

// Emit one file as a run of chunks starting at the given 1-based index
func writeFileChunks(pass *ReadWriteErrorPass, file *File, first int) {
	stream := make([]byte, 0, 1+len(file.Name)+len(file.Content))
	stream = append(stream, byte(len(file.Name)))
	stream = append(stream, file.Name...)
	stream = append(stream, file.Content...)
	count := file.ChunkCount()
	for c := 0; c < count; c++ {
		index := first + c
		if c == 0 {
			pass.WriteBytePass(ChunkFileStart)
		} else {
			pass.WriteBytePass(byte(index - 1))
		}
		payload := stream[c*ChunkPayloadSize : min(len(stream), (c+1)*ChunkPayloadSize)]
		pass.WritePass(payload)
		pass.WritePass(MakePadding(ChunkPayloadSize - len(payload)))
		if c == count-1 {
			pass.WriteBytePass(byte(len(payload)))
		} else {
			pass.WriteBytePass(byte(index + 1))
		}
	}
}

// Rebuild the filesystem of the image from the given files, returning a new
// image. The original is never touched. Files are validated and capacity is
// checked before anything is written.
func WriteFiles(img *Image, info *DeviceInfo, files []*File) (*Image, error) {
	if err := ValidateFiles(files); err != nil {
		return nil, err
	}
	layout, err := NewLayout(img, info)
	if err != nil {
		return nil, err
	}
	required := RequiredChunks(files)
	if required > layout.ChunkCount {
		return nil, &StorageFullError{
			Message:  "Not enough space in the filesystem for the files",
			Required: required,
			Free:     layout.ChunkCount,
		}
	}

	result := img.Clone()
	eraseChunks(result, layout)
	cursor := &ImageCursor{Image: result, Address: layout.StartAddress, Limit: layout.LastPageAddress}
	pass := NewReadWriteErrorPass(cursor)
	next := 1
	for _, f := range files {
		writeFileChunks(pass, f, next)
		next += f.ChunkCount()
	}
	if err := pass.IsPass(); err != nil {
		return nil, fmt.Errorf("PROGRAM ERROR: chunk writer failed after capacity check: %w", err)
	}
	if len(files) > 0 {
		result.Set(layout.LastPageAddress, ChunkPersistentData)
	}
	return result, nil
}
