package microbit

import (
	"bytes"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"
)

func testImages() map[string]func() *Image {
	return map[string]func() *Image{
		"v1":       makeV1Image,
		"v2uicr":   makeV2UicrImage,
		"v2region": makeRegionsImage,
	}
}

func writeAndRead(img *Image, files []*File, t *testing.T) []*File {
	info := mustDetect(img, t)
	written, err := WriteFiles(img, info, files)
	if err != nil {
		t.Fatalf("Couldn't write files: %s", err)
	}
	read, err := ReadFiles(written, info)
	if err != nil {
		t.Fatalf("Couldn't read files back: %s", err)
	}
	return read
}

func checkSameFiles(expected []*File, got []*File, t *testing.T) {
	if len(expected) != len(got) {
		t.Fatalf("Expected %d files, got %d", len(expected), len(got))
	}
	byName := make(map[string]*File)
	for _, f := range got {
		byName[f.Name] = f
	}
	for _, f := range expected {
		g, ok := byName[f.Name]
		if !ok {
			t.Fatalf("Missing file %s", f.Name)
		}
		if !bytes.Equal(f.Content, g.Content) {
			t.Fatalf("Content of %s differs: expected %d bytes, got %d", f.Name, len(f.Content), len(g.Content))
		}
	}
}

func TestWriteFiles_RoundTrip(t *testing.T) {
	for name, build := range testImages() {
		files := []*File{
			mustFile("main.py", []byte("from microbit import *\ndisplay.scroll('hi')\n"), t),
			mustFile("data.bin", bytes.Repeat([]byte{0, 1, 2, 3}, 300), t),
			mustFile("x", []byte{7}, t),
		}
		read := writeAndRead(build(), files, t)
		checkSameFiles(files, read, t)
		t.Logf("%s: round trip of %d files ok", name, len(files))
	}
}

func TestWriteFiles_RandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	_, layout := mustLayout(makeRegionsImage(), t)
	for round := 0; round < 50; round++ {
		files := make([]*File, 0)
		used := 0
		count := 1 + rng.Intn(10)
		for i := 0; i < count; i++ {
			name := fmt.Sprintf("file_%d_%s.py", i, strings.Repeat("x", rng.Intn(40)))
			f := mustFile(name, randomBytes(rng, 1+rng.Intn(600)), t)
			if used+f.ChunkCount() > layout.ChunkCount {
				break
			}
			used += f.ChunkCount()
			files = append(files, f)
		}
		checkSameFiles(files, writeAndRead(makeRegionsImage(), files, t), t)
	}
}

func TestWriteFiles_ChunkBoundaries(t *testing.T) {
	// Every content length around the edges of the first few chunks
	for content := 115; content < 3*126+10; content++ {
		f := mustFile("a.py", bytes.Repeat([]byte{'z'}, content), t)
		read := writeAndRead(makeV1Image(), []*File{f}, t)
		checkSameFiles([]*File{f}, read, t)
	}
}

func TestWriteFiles_MarkerContent(t *testing.T) {
	content := make([]byte, 0, 500)
	for i := 0; i < 500; i++ {
		content = append(content, []byte{0xFE, 0xFF, 0xFD, 0x00}[i%4])
	}
	files := []*File{
		mustFile("markers.bin", content, t),
		mustFile("ff.bin", bytes.Repeat([]byte{0xFF}, 126), t),
		mustFile("fe.bin", []byte{0xFE}, t),
	}
	checkSameFiles(files, writeAndRead(makeV1Image(), files, t), t)
}

func TestWriteFiles_EmptyIsIdentity(t *testing.T) {
	for name, build := range testImages() {
		img := build()
		info := mustDetect(img, t)
		written, err := WriteFiles(img, info, nil)
		if err != nil {
			t.Fatalf("%s: Couldn't write no files: %s", name, err)
		}
		if !written.Equal(img) {
			t.Fatalf("%s: Writing no files changed the image", name)
		}
		read, err := ReadFiles(written, info)
		if err != nil || len(read) != 0 {
			t.Fatalf("%s: Expected no files, got %d (%v)", name, len(read), err)
		}
	}
}

func TestWriteFiles_ReplacesExisting(t *testing.T) {
	img := makeV1Image()
	info := mustDetect(img, t)
	first, err := WriteFiles(img, info, []*File{mustFile("old.py", bytes.Repeat([]byte{1}, 1000), t)})
	if err != nil {
		t.Fatalf("Couldn't write first set: %s", err)
	}
	files := []*File{mustFile("new.py", []byte("new"), t)}
	second, err := WriteFiles(first, info, files)
	if err != nil {
		t.Fatalf("Couldn't write second set: %s", err)
	}
	read, err := ReadFiles(second, info)
	if err != nil {
		t.Fatalf("Couldn't read second set: %s", err)
	}
	checkSameFiles(files, read, t)
	// The old chunks past the new file are erased, not left behind
	_, layout := mustLayout(second, t)
	if second.Byte(layout.ChunkAddress(2)) != ChunkUnused {
		t.Fatalf("Expected chunk 2 to be erased")
	}
	// Writing nothing clears the files but the image keeps its (erased) bytes
	cleared, err := WriteFiles(second, info, nil)
	if err != nil {
		t.Fatalf("Couldn't clear files: %s", err)
	}
	read, err = ReadFiles(cleared, info)
	if err != nil || len(read) != 0 {
		t.Fatalf("Expected cleared image to have no files: %d, %v", len(read), err)
	}
}

func TestWriteFiles_Layout(t *testing.T) {
	img := makeRegionsImage()
	_, layout := mustLayout(img, t)
	info := mustDetect(img, t)
	content := bytes.Repeat([]byte{'c'}, 200) // 1+4+200 = 205: two chunks, 79 in the last
	written, err := WriteFiles(img, info, []*File{
		mustFile("a.py", content, t),
		mustFile("b.py", []byte("b"), t),
	})
	if err != nil {
		t.Fatalf("Couldn't write files: %s", err)
	}
	c1 := written.Slice(layout.ChunkAddress(1), ChunkSize)
	c2 := written.Slice(layout.ChunkAddress(2), ChunkSize)
	c3 := written.Slice(layout.ChunkAddress(3), ChunkSize)
	if c1[0] != ChunkFileStart || c1[1] != 4 || string(c1[2:6]) != "a.py" || c1[ChunkTailOffset] != 2 {
		t.Fatalf("Bad first chunk: %v", c1)
	}
	if c2[0] != 1 || c2[ChunkTailOffset] != 205-126 {
		t.Fatalf("Bad continuation chunk: marker %d, tail %d", c2[0], c2[ChunkTailOffset])
	}
	if !slices.Equal(c2[1+79:ChunkTailOffset], MakePadding(126-79)) {
		t.Fatalf("Expected continuation padding to be 0xFF")
	}
	if c3[0] != ChunkFileStart || c3[1] != 4 || string(c3[2:6]) != "b.py" || c3[6] != 'b' || c3[ChunkTailOffset] != 6 {
		t.Fatalf("Bad second file chunk: %v", c3)
	}
	if written.Byte(layout.ChunkAddress(4)) != ChunkUnused {
		t.Fatalf("Expected chunk 4 unused")
	}
	if written.Byte(layout.LastPageAddress) != ChunkPersistentData {
		t.Fatalf("Expected persistent data marker on the last page")
	}
}

func TestWriteFiles_Deterministic(t *testing.T) {
	files := []*File{mustFile("a.py", []byte("aaa"), t), mustFile("b.py", []byte("bbb"), t)}
	img := makeV1Image()
	info := mustDetect(img, t)
	one, err1 := WriteFiles(img, info, files)
	two, err2 := WriteFiles(img, info, files)
	if err1 != nil || err2 != nil || !one.Equal(two) {
		t.Fatalf("Expected identical output for identical input (%v, %v)", err1, err2)
	}
}

func TestWriteFiles_Capacity(t *testing.T) {
	for name, build := range testImages() {
		img := build()
		info, layout := mustLayout(img, t)
		original := img.Clone()
		maxContent := layout.MaxContentSize(len("big.bin"))
		fits := mustFile("big.bin", bytes.Repeat([]byte{0x55}, maxContent), t)
		read := writeAndRead(img, []*File{fits}, t)
		checkSameFiles([]*File{fits}, read, t)

		tooBig := mustFile("big.bin", bytes.Repeat([]byte{0x55}, maxContent+1), t)
		_, err := WriteFiles(img, info, []*File{tooBig})
		switch v := err.(type) {
		case *StorageFullError:
			if v.Required != layout.ChunkCount+1 || v.Free != layout.ChunkCount {
				t.Fatalf("%s: Unexpected storage numbers: %s", name, v)
			}
		default:
			t.Fatalf("%s: Expected StorageFullError, got %T: %v", name, err, err)
		}
		if !img.Equal(original) {
			t.Fatalf("%s: Failed write modified the input image", name)
		}
	}
}

func TestWriteFiles_ValidationFirst(t *testing.T) {
	img := makeV1Image()
	info := mustDetect(img, t)
	_, err := WriteFiles(img, info, []*File{
		mustFile("main.py", []byte("1"), t),
		mustFile("main.py", []byte("2"), t),
	})
	expectInvalidFile(err, "Duplicate", t)
	// Invalid beats full: a bad file is reported even if everything is too big
	_, err = WriteFiles(img, info, []*File{
		mustFile("huge.bin", make([]byte, 100000), t),
		{Name: "", Content: []byte("x")},
	})
	expectInvalidFile(err, "cannot be empty", t)
}

func TestWriteFiles_KeepsOtherData(t *testing.T) {
	img := makeV2CombinedImage()
	original := img.Clone()
	read := writeAndRead(img, []*File{mustFile("main.py", []byte("x = 1"), t)}, t)
	if len(read) != 1 {
		t.Fatalf("Expected one file, got %d", len(read))
	}
	info := mustDetect(img, t)
	written, _ := WriteFiles(img, info, []*File{mustFile("main.py", []byte("x = 1"), t)})
	for _, a := range original.Addresses() {
		if written.Byte(a) != original.Byte(a) {
			t.Fatalf("Byte at 0x%X outside the filesystem changed", a)
		}
	}
}
