package microbit

import (
	"fmt"
)

// A single file in the flat MicroPython filesystem
type File struct {
	Name    string
	Content []byte
}

// Create a file, failing with InvalidFileError if it couldn't be stored
func NewFile(name string, content []byte) (*File, error) {
	f := &File{Name: name, Content: content}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func NewTextFile(name string, text string) (*File, error) {
	return NewFile(name, []byte(text))
}

func (f *File) Validate() error {
	if len(f.Name) == 0 {
		return &InvalidFileError{Message: "File name cannot be empty"}
	}
	if len(f.Name) > MaxFilenameSize {
		return &InvalidFileError{
			Message: fmt.Sprintf("File name '%s' is too long (%d bytes, max %d)", f.Name, len(f.Name), MaxFilenameSize),
		}
	}
	if len(f.Content) == 0 {
		return &InvalidFileError{Message: fmt.Sprintf("File content cannot be empty (%s)", f.Name)}
	}
	return nil
}

func (f *File) Text() string {
	return string(f.Content)
}

func (f *File) Size() int {
	return len(f.Content)
}

func (f *File) ChunkCount() int {
	return ChunksFor(len(f.Name), len(f.Content))
}

// Bytes of filesystem storage the file occupies (whole chunks)
func (f *File) SizeFS() int {
	return f.ChunkCount() * ChunkSize
}

// The chunk stream for a file is the name length byte, the name, then the
// content, spread across the payload of as many chunks as needed.
func ChunksFor(nameLength int, contentLength int) int {
	stream := 1 + nameLength + contentLength
	return (stream + ChunkPayloadSize - 1) / ChunkPayloadSize
}

// Validate every file and make sure no two share a name
func ValidateFiles(files []*File) error {
	seen := make(map[string]bool)
	for i, f := range files {
		if f == nil {
			return &InvalidFileError{Message: fmt.Sprintf("File %d is missing", i)}
		}
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.Name] {
			return &InvalidFileError{Message: fmt.Sprintf("Duplicate file name: %s", f.Name)}
		}
		seen[f.Name] = true
	}
	return nil
}
