package microbit

import (
	"testing"
)

func testAlignWidth(width uint, align uint, expected uint, t *testing.T) {
	result := AlignWidth(width, align)
	if result != expected {
		t.Fatalf("%d align %d: Expected %d, got %d", width, align, expected, result)
	}
}

func TestAlignWidth_All(t *testing.T) {
	testAlignWidth(5, 1024, 1024, t)
	testAlignWidth(0, 1024, 0, t)
	testAlignWidth(1024, 1024, 1024, t)
	testAlignWidth(0x6B200, 4096, 0x6C000, t)
	testAlignWidth(0x6C000, 4096, 0x6C000, t)
	testAlignWidth(129, 128, 256, t)
}

func TestMakePadding(t *testing.T) {
	result := MakePadding(1)
	if len(result) != 1 || result[0] != 0xFF {
		t.Fatalf("Expected exactly one 0xFF byte, got %v", result)
	}
	result = MakePadding(233)
	if len(result) != 233 {
		t.Fatalf("Expected exactly 233 bytes!")
	}
	for i := range result {
		if result[i] != 0xFF {
			t.Fatalf("Expected byte [%d] to be 0xFF, was %d!", i, result[i])
		}
	}
	if len(MakePadding(0)) != 0 {
		t.Fatalf("Expected no padding")
	}
}

func TestMd5String(t *testing.T) {
	if Md5String([]byte("")) != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Fatalf("Wrong md5 of nothing: %s", Md5String(nil))
	}
}
