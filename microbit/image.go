package microbit

import (
	"bytes"
	"io"
	"slices"
	"strings"

	"github.com/marcinbor85/gohex"
)

const (
	HexLineLength = 16
)

// A sparse flash image: only addresses which actually appeared in the hex
// (or were written since) are present.
type Image struct {
	data         map[uint32]byte
	startAddress uint32
	hasStart     bool
}

// A run of consecutive present addresses
type Segment struct {
	Address uint32
	Data    []byte
}

func NewImage() *Image {
	return &Image{data: make(map[uint32]byte)}
}

// Parse an intel hex stream into an image. Any failure is an InvalidHexError.
func LoadHex(reader io.Reader) (*Image, error) {
	mem := gohex.NewMemory()
	err := mem.ParseIntelHex(reader)
	if err != nil {
		return nil, &InvalidHexError{Message: "Failed to parse Intel Hex data", Err: err}
	}
	img := NewImage()
	for _, segment := range mem.GetDataSegments() {
		img.Write(segment.Address, segment.Data)
	}
	img.startAddress, img.hasStart = mem.GetStartAddress()
	return img, nil
}

// Same as LoadHex but from the full hex text
func ParseHex(hexdata string) (*Image, error) {
	return LoadHex(strings.NewReader(hexdata))
}

func (img *Image) Has(address uint32) bool {
	_, ok := img.data[address]
	return ok
}

func (img *Image) Get(address uint32) (byte, bool) {
	b, ok := img.data[address]
	return b, ok
}

// Get the byte at address, reading absent addresses as erased flash
func (img *Image) Byte(address uint32) byte {
	if b, ok := img.data[address]; ok {
		return b
	}
	return 0xFF
}

func (img *Image) Set(address uint32, b byte) {
	img.data[address] = b
}

func (img *Image) Write(address uint32, data []byte) {
	for i, b := range data {
		img.data[address+uint32(i)] = b
	}
}

// Copy length bytes starting at address. Absent addresses are filled with 0xFF.
func (img *Image) Slice(address uint32, length int) []byte {
	result := make([]byte, length)
	for i := range result {
		result[i] = img.Byte(address + uint32(i))
	}
	return result
}

// Number of present addresses
func (img *Image) Len() int {
	return len(img.data)
}

func (img *Image) StartAddress() (uint32, bool) {
	return img.startAddress, img.hasStart
}

func (img *Image) SetStartAddress(address uint32) {
	img.startAddress = address
	img.hasStart = true
}

func (img *Image) Clone() *Image {
	result := &Image{
		data:         make(map[uint32]byte, len(img.data)),
		startAddress: img.startAddress,
		hasStart:     img.hasStart,
	}
	for a, b := range img.data {
		result.data[a] = b
	}
	return result
}

// Two images are equal if their address to byte mappings are equal. The start
// address record is not considered.
func (img *Image) Equal(other *Image) bool {
	if len(img.data) != len(other.data) {
		return false
	}
	for a, b := range img.data {
		if ob, ok := other.data[a]; !ok || ob != b {
			return false
		}
	}
	return true
}

// All present addresses in ascending order
func (img *Image) Addresses() []uint32 {
	result := make([]uint32, 0, len(img.data))
	for a := range img.data {
		result = append(result, a)
	}
	slices.Sort(result)
	return result
}

// Group present addresses into runs of consecutive data, ascending
func (img *Image) Segments() []Segment {
	result := make([]Segment, 0)
	var current *Segment
	for _, a := range img.Addresses() {
		if current != nil && a == current.Address+uint32(len(current.Data)) {
			current.Data = append(current.Data, img.data[a])
			continue
		}
		result = append(result, Segment{Address: a, Data: []byte{img.data[a]}})
		current = &result[len(result)-1]
	}
	return result
}

// Base addresses of every page (of the given size) holding at least one
// present byte, ascending
func (img *Image) Pages(pageSize uint32) []uint32 {
	seen := make(map[uint32]bool)
	result := make([]uint32, 0)
	for a := range img.data {
		base := a - a%pageSize
		if !seen[base] {
			seen[base] = true
			result = append(result, base)
		}
	}
	slices.Sort(result)
	return result
}

// Dump the image as intel hex, in ascending address order
func (img *Image) WriteHex(writer io.Writer) error {
	mem := gohex.NewMemory()
	for _, segment := range img.Segments() {
		err := mem.AddBinary(segment.Address, segment.Data)
		if err != nil {
			return err
		}
	}
	if img.hasStart {
		mem.SetStartAddress(img.startAddress)
	}
	return mem.DumpIntelHex(writer, HexLineLength)
}

func (img *Image) HexString() (string, error) {
	var buf bytes.Buffer
	err := img.WriteHex(&buf)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
