package microbit

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
)

// Align width to the next given alignment (assumes powers of 2)
func AlignWidth(width uint, align uint) uint {
	return (width + align - 1) & ^(align - 1)
}

// Generate a byte slice of the given length filled with 0xFF, which is
// what erased flash looks like
func MakePadding(length int) []byte {
	return bytes.Repeat([]byte{0xFF}, length)
}

// Produce an md5 string from given data (a simple shortcut)
func Md5String(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

// Little endian 16 bit read straight out of the image (absent bytes read as 0xFF)
func (img *Image) Uint16(address uint32) uint16 {
	return binary.LittleEndian.Uint16(img.Slice(address, 2))
}

// Little endian 32 bit read straight out of the image (absent bytes read as 0xFF)
func (img *Image) Uint32(address uint32) uint32 {
	return binary.LittleEndian.Uint32(img.Slice(address, 4))
}

func (img *Image) Uint64(address uint32) uint64 {
	return binary.LittleEndian.Uint64(img.Slice(address, 8))
}

// Read a null terminated string starting at address, looking no further than
// maxLength bytes. Returns "" if there's no data at the address or the string
// never terminates within the window.
func (img *Image) CString(address uint32, maxLength int) string {
	if !img.Has(address) {
		return ""
	}
	var buf bytes.Buffer
	for i := 0; i < maxLength; i++ {
		b, ok := img.Get(address + uint32(i))
		if !ok {
			return ""
		}
		if b == 0 {
			return buf.String()
		}
		buf.WriteByte(b)
	}
	return ""
}
