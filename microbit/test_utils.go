package microbit

import (
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	testV1Version      = "micropython v1.9.2-34-gd64154c73 on 2017-09-01"
	testV2Version      = "micropython v2.1.2 on 2023-10-30"
	testUicrV2Version  = "micropython uicr v2 prerelease"
	testVersionAddress = 0x2000

	testV1PagesUsed      = 227 // 0x388B8 runtime end on 1k pages
	testV2UicrPagesUsed  = 98
	testRegionsTablePage = 0x61000
	testRegionsFsStart   = 0x6D000
	testRegionsFsLength  = 0x6000
	testRegionsVersion   = 0x5F000
)

func newRandomFilepath(filename string) (string, error) {
	err := os.MkdirAll("ignore", 0770)
	if err != nil {
		return "", err
	}
	filename = time.Now().Format("20060102030405") + "_" + filename
	return filepath.Abs(filepath.Join("ignore", filename))
}

func putUint16(img *Image, address uint32, value uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], value)
	img.Write(address, b[:])
}

func putUint32(img *Image, address uint32, value uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	img.Write(address, b[:])
}

func putUint64(img *Image, address uint32, value uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	img.Write(address, b[:])
}

// A fake runtime: some code-looking bytes at the bottom of flash and a
// version string
func writeFakeRuntime(img *Image, versionAddress uint32, version string) {
	code := make([]byte, 512)
	for i := range code {
		code[i] = byte(i * 7)
	}
	img.Write(0, code)
	img.Write(versionAddress, append([]byte(version), 0))
}

func writeUicrBlock(img *Image, magic uint32, pageLog2 uint32, pagesUsed uint16, versionAddress uint32) {
	putUint32(img, UicrUpyStart+uicrMagicOffset, magic)
	putUint32(img, UicrUpyStart+uicrEndMarkerOffset, 0xFFFFFFFF)
	putUint32(img, UicrUpyStart+uicrPageSizeOffset, pageLog2)
	putUint16(img, UicrUpyStart+uicrStartPageOffset, 0)
	putUint16(img, UicrUpyStart+uicrPagesUsedOffset, pagesUsed)
	putUint32(img, UicrUpyStart+uicrDelimiterOffset, 0xFFFFFFFF)
	putUint32(img, UicrUpyStart+uicrVersionLocationOffset, versionAddress)
	putUint32(img, UicrUpyStart+uicrRegionsTermOffset, 0)
}

// V1 image found through UICR: 1k pages, filesystem 0x38C00 up to 256k
func makeV1Image() *Image {
	img := NewImage()
	writeFakeRuntime(img, testVersionAddress, testV1Version)
	writeUicrBlock(img, UicrMagicV1, 10, testV1PagesUsed, testVersionAddress)
	return img
}

// V2 image found through UICR only: 4k pages, filesystem 0x62000 to 0x73000
func makeV2UicrImage() *Image {
	img := NewImage()
	writeFakeRuntime(img, testVersionAddress, testUicrV2Version)
	writeUicrBlock(img, UicrMagicV2, 12, testV2UicrPagesUsed, testVersionAddress)
	return img
}

func writeRegionRow(img *Image, rowEnd uint32, id uint8, hashType uint8, startPage uint16, length uint32, hashData uint64) {
	img.Set(rowEnd-16, id)
	img.Set(rowEnd-15, hashType)
	putUint16(img, rowEnd-14, startPage)
	putUint32(img, rowEnd-12, length)
	putUint64(img, rowEnd-8, hashData)
}

// V2 image with a flash regions table ending at 0x62000 and the filesystem
// at 0x6D000-0x73000. Rows can be left out to make a broken table.
func makeRegionsImageRows(withMicroPython bool, withFs bool) *Image {
	img := NewImage()
	writeFakeRuntime(img, testRegionsVersion, testV2Version)
	end := uint32(testRegionsTablePage + RegionsTablePageSize)
	rowEnd := end - RegionsHeaderSize
	count := uint16(0)
	writeRegionRow(img, rowEnd, RegionSoftDevice, RegionHashData, 0, 0x1C000, 0x1234)
	rowEnd -= RegionsRowSize
	count++
	if withMicroPython {
		writeRegionRow(img, rowEnd, RegionMicroPython, RegionHashPointer, 0x1C, end-0x1C000, testRegionsVersion)
		rowEnd -= RegionsRowSize
		count++
	}
	if withFs {
		writeRegionRow(img, rowEnd, RegionFilesystem, RegionHashNone, testRegionsFsStart/RegionsTablePageSize, testRegionsFsLength, 0)
		count++
	}
	putUint32(img, end-16, RegionsMagic1)
	putUint16(img, end-12, 1)
	putUint16(img, end-10, count*RegionsRowSize)
	putUint16(img, end-8, count)
	putUint16(img, end-6, 12)
	putUint32(img, end-4, RegionsMagic2)
	return img
}

func makeRegionsImage() *Image {
	return makeRegionsImageRows(true, true)
}

// Both a flash regions table and a (differently versioned) UICR block, like
// real V2 builds
func makeV2CombinedImage() *Image {
	img := makeRegionsImage()
	img.Write(testVersionAddress, append([]byte(testUicrV2Version), 0))
	writeUicrBlock(img, UicrMagicV2, 12, testV2UicrPagesUsed, testVersionAddress)
	return img
}

func mustDetect(img *Image, t *testing.T) *DeviceInfo {
	info, err := DetectDevice(img)
	if err != nil {
		t.Fatalf("Couldn't detect device: %s", err)
	}
	return info
}

func mustLayout(img *Image, t *testing.T) (*DeviceInfo, *Layout) {
	info := mustDetect(img, t)
	layout, err := NewLayout(img, info)
	if err != nil {
		t.Fatalf("Couldn't compute layout: %s", err)
	}
	return info, layout
}

func mustFile(name string, content []byte, t *testing.T) *File {
	f, err := NewFile(name, content)
	if err != nil {
		t.Fatalf("Couldn't create file %s: %s", name, err)
	}
	return f
}

// Write a raw chunk by hand, for building broken filesystems
func writeRawChunk(img *Image, layout *Layout, index int, marker byte, payload []byte, tail byte) {
	chunk := MakePadding(ChunkSize)
	chunk[0] = marker
	copy(chunk[1:ChunkTailOffset], payload)
	chunk[ChunkTailOffset] = tail
	img.Write(layout.ChunkAddress(index), chunk)
}

// Name length byte + name + content, as it sits at the start of a first chunk
func startPayload(name string, content string) []byte {
	result := []byte{byte(len(name))}
	result = append(result, name...)
	return append(result, content...)
}

func randomBytes(rng *rand.Rand, length int) []byte {
	result := make([]byte, length)
	rng.Read(result)
	return result
}
