package microbit

import (
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Read the entirety of the given archive entry into memory and return it
func loadArchiveEntry(f *zip.File) ([]byte, error) {
	reader, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// Every regular file at the root of the archive becomes one file, sorted by
// name. The filesystem is flat, so anything in a folder is skipped.
func ReadArchiveFiles(archive *zip.Reader) ([]*File, error) {
	entries := make([]*zip.File, 0)
	for _, f := range archive.File {
		if strings.Contains(strings.TrimSuffix(f.Name, "/"), "/") || f.FileInfo().IsDir() {
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		entries = append(entries, f)
	}
	slices.SortFunc(entries, func(a, b *zip.File) int { return strings.Compare(a.Name, b.Name) })
	result := make([]*File, 0, len(entries))
	for _, f := range entries {
		content, err := loadArchiveEntry(f)
		if err != nil {
			return nil, fmt.Errorf("Couldn't read %s from archive: %w", f.Name, err)
		}
		file, err := NewFile(path.Base(f.Name), content)
		if err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	return result, nil
}

func LoadArchiveFiles(filename string) ([]*File, error) {
	archive, err := zip.OpenReader(filename)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return ReadArchiveFiles(&archive.Reader)
}

// Store the files as a flat zip, the reverse of ReadArchiveFiles
func WriteArchiveFiles(writer io.Writer, files []*File) error {
	zw := zip.NewWriter(writer)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			return err
		}
		if _, err = w.Write(f.Content); err != nil {
			return err
		}
	}
	return zw.Close()
}
