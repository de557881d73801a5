package microbit

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidHex
	KindNotMicroPython
	KindInvalidFile
	KindStorageFull
	KindFilesystem
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidHex:
		return "InvalidHex"
	case KindNotMicroPython:
		return "NotMicroPython"
	case KindInvalidFile:
		return "InvalidFile"
	case KindStorageFull:
		return "StorageFull"
	case KindFilesystem:
		return "Filesystem"
	}
	return "None"
}

// Find the kind of the first categorized error in the chain, or KindNone
func KindOf(err error) ErrorKind {
	var kinded interface{ Kind() ErrorKind }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindNone
}

func formatError(message string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: %s", message, err)
	}
	return message
}

// The input could not be parsed as intel hex
type InvalidHexError struct {
	Message string
	Err     error
}

func (e *InvalidHexError) Error() string   { return formatError(e.Message, e.Err) }
func (e *InvalidHexError) Unwrap() error   { return e.Err }
func (e *InvalidHexError) Kind() ErrorKind { return KindInvalidHex }

// No detection strategy recognized the image as MicroPython
type NotMicroPythonError struct {
	Message string
	Err     error
}

func (e *NotMicroPythonError) Error() string   { return formatError(e.Message, e.Err) }
func (e *NotMicroPythonError) Unwrap() error   { return e.Err }
func (e *NotMicroPythonError) Kind() ErrorKind { return KindNotMicroPython }

// A file can't be stored as given (bad name, no content, duplicate)
type InvalidFileError struct {
	Message string
	Err     error
}

func (e *InvalidFileError) Error() string   { return formatError(e.Message, e.Err) }
func (e *InvalidFileError) Unwrap() error   { return e.Err }
func (e *InvalidFileError) Kind() ErrorKind { return KindInvalidFile }

// The files don't fit in the chunk region
type StorageFullError struct {
	Message  string
	Required int // In chunks
	Free     int
}

func (e *StorageFullError) Error() string {
	return fmt.Sprintf("%s (need %d chunks, have %d)", e.Message, e.Required, e.Free)
}
func (e *StorageFullError) Kind() ErrorKind { return KindStorageFull }

// The chunk structure in the image is inconsistent
type FilesystemError struct {
	Message string
	Err     error
}

func (e *FilesystemError) Error() string   { return formatError(e.Message, e.Err) }
func (e *FilesystemError) Unwrap() error   { return e.Err }
func (e *FilesystemError) Kind() ErrorKind { return KindFilesystem }
