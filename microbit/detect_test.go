package microbit

import (
	"testing"
)

func checkAddress(name string, got uint32, expected uint32, t *testing.T) {
	if got != expected {
		t.Fatalf("%s: Expected 0x%X, got 0x%X", name, expected, got)
	}
}

func TestDetect_UicrV1(t *testing.T) {
	info := mustDetect(makeV1Image(), t)
	if info.Detector != "uicr" {
		t.Fatalf("Expected uicr detector, got %s", info.Detector)
	}
	if info.DeviceVersion != DeviceV1 {
		t.Fatalf("Expected V1, got %s", info.DeviceVersion)
	}
	if info.MicroPythonVersion != testV1Version {
		t.Fatalf("Expected version '%s', got '%s'", testV1Version, info.MicroPythonVersion)
	}
	checkAddress("page size", info.FlashPageSize, 1024, t)
	checkAddress("flash size", info.FlashSize, FlashSizeV1, t)
	checkAddress("flash end", info.FlashEndAddress, FlashSizeV1, t)
	checkAddress("runtime end", info.RuntimeEndAddress, (0x388B8/1024+1)*1024, t)
	checkAddress("fs start", info.FsStartAddress, 0x38C00, t)
	checkAddress("fs end", info.FsEndAddress, FsEndV1, t)
	checkAddress("fs size", info.FsSize(), FsEndV1-0x38C00, t)
}

func TestDetect_UicrV2(t *testing.T) {
	info := mustDetect(makeV2UicrImage(), t)
	if info.Detector != "uicr" || info.DeviceVersion != DeviceV2 {
		t.Fatalf("Expected V2 from uicr, got %s from %s", info.DeviceVersion, info.Detector)
	}
	if info.MicroPythonVersion != testUicrV2Version {
		t.Fatalf("Expected version '%s', got '%s'", testUicrV2Version, info.MicroPythonVersion)
	}
	checkAddress("page size", info.FlashPageSize, 4096, t)
	checkAddress("flash size", info.FlashSize, FlashSizeV2, t)
	checkAddress("fs start", info.FsStartAddress, 0x62000, t)
	checkAddress("fs end", info.FsEndAddress, FsEndV2, t)
}

func TestDetect_FlashRegions(t *testing.T) {
	info := mustDetect(makeRegionsImage(), t)
	if info.Detector != "flash-regions" || info.DeviceVersion != DeviceV2 {
		t.Fatalf("Expected V2 from flash-regions, got %s from %s", info.DeviceVersion, info.Detector)
	}
	if info.MicroPythonVersion != testV2Version {
		t.Fatalf("Expected version '%s', got '%s'", testV2Version, info.MicroPythonVersion)
	}
	checkAddress("page size", info.FlashPageSize, 4096, t)
	checkAddress("runtime start", info.RuntimeStartAddress, 0, t)
	checkAddress("runtime end", info.RuntimeEndAddress, (0x61F24/4096+1)*4096, t)
	checkAddress("fs start", info.FsStartAddress, 0x6D000, t)
	checkAddress("fs end", info.FsEndAddress, 0x73000, t)
	checkAddress("flash end", info.FlashEndAddress, FlashSizeV2, t)
}

func TestDetect_FlashRegionsPreferred(t *testing.T) {
	info := mustDetect(makeV2CombinedImage(), t)
	if info.Detector != "flash-regions" {
		t.Fatalf("Expected the flash regions table to win, got %s", info.Detector)
	}
	if info.MicroPythonVersion != testV2Version {
		t.Fatalf("Expected the flash regions version '%s', got '%s'", testV2Version, info.MicroPythonVersion)
	}
	// The uicr alone still gives its own answer
	uicr, err := (&UicrDetector{}).Detect(makeV2CombinedImage())
	if err != nil || uicr == nil {
		t.Fatalf("Expected uicr to also recognize the image: %v", err)
	}
	if uicr.MicroPythonVersion != testUicrV2Version {
		t.Fatalf("Expected uicr version '%s', got '%s'", testUicrV2Version, uicr.MicroPythonVersion)
	}
}

func TestDetect_NotMicroPython(t *testing.T) {
	img := NewImage()
	img.Write(0, []byte{1, 2, 3, 4})
	_, err := DetectDevice(img)
	switch v := err.(type) {
	case *NotMicroPythonError:
		if v.Err != nil {
			t.Fatalf("Expected plain not-recognized, got wrapped %s", v.Err)
		}
	default:
		t.Fatalf("Expected NotMicroPythonError, got %T: %v", err, err)
	}
	_, err = DetectDevice(NewImage())
	if KindOf(err) != KindNotMicroPython {
		t.Fatalf("Expected empty image to be NotMicroPython, got %v", err)
	}
}

func TestDetect_UnknownUicrMagic(t *testing.T) {
	img := NewImage()
	writeFakeRuntime(img, testVersionAddress, testV1Version)
	writeUicrBlock(img, 0x12345678, 10, testV1PagesUsed, testVersionAddress)
	info, err := (&UicrDetector{}).Detect(img)
	if info != nil || err != nil {
		t.Fatalf("Expected unknown magic to be not recognized, got %v, %v", info, err)
	}
}

func TestDetect_BrokenRegionsTable(t *testing.T) {
	for _, broken := range []*Image{makeRegionsImageRows(false, true), makeRegionsImageRows(true, false)} {
		info, err := (&FlashRegionsDetector{}).Detect(broken)
		if info != nil || err == nil {
			t.Fatalf("Expected broken table to be an error, got %v, %v", info, err)
		}
		_, err = DetectDevice(broken)
		if KindOf(err) != KindNotMicroPython {
			t.Fatalf("Expected NotMicroPython, got %v", err)
		}
	}
}

func TestDetect_BrokenRegionsFallsBackToUicr(t *testing.T) {
	img := makeRegionsImageRows(true, false)
	writeUicrBlock(img, UicrMagicV2, 12, testV2UicrPagesUsed, testRegionsVersion)
	info := mustDetect(img, t)
	if info.Detector != "uicr" {
		t.Fatalf("Expected uicr after broken regions table, got %s", info.Detector)
	}
}

func TestDetect_MissingVersion(t *testing.T) {
	img := NewImage()
	writeUicrBlock(img, UicrMagicV1, 10, testV1PagesUsed, 0x30000)
	info := mustDetect(img, t)
	if info.MicroPythonVersion != "" {
		t.Fatalf("Expected empty version, got '%s'", info.MicroPythonVersion)
	}
}

func TestDetect_BadUicrPageSize(t *testing.T) {
	img := NewImage()
	writeUicrBlock(img, UicrMagicV1, 20, testV1PagesUsed, 0)
	_, err := (&UicrDetector{}).Detect(img)
	if err == nil {
		t.Fatalf("Expected error for page size log2 20")
	}
}

func TestDeviceInfo_Validate(t *testing.T) {
	info := mustDetect(makeV1Image(), t)
	if err := info.Validate(); err != nil {
		t.Fatalf("Expected detected info to validate: %s", err)
	}
	broken := *info
	broken.FsStartAddress = broken.RuntimeEndAddress - 1024
	if err := broken.Validate(); err == nil {
		t.Fatalf("Expected filesystem overlapping runtime to fail")
	}
	broken = *info
	broken.FsStartAddress += 1
	if err := broken.Validate(); err == nil {
		t.Fatalf("Expected unaligned filesystem start to fail")
	}
}

type fakeDetector struct {
	name string
	info *DeviceInfo
	err  error
}

func (f *fakeDetector) Name() string                          { return f.name }
func (f *fakeDetector) Detect(img *Image) (*DeviceInfo, error) { return f.info, f.err }

func TestDetectDeviceWith_Order(t *testing.T) {
	first := &DeviceInfo{Detector: "first"}
	second := &DeviceInfo{Detector: "second"}
	info, err := DetectDeviceWith(NewImage(), []DeviceDetector{
		&fakeDetector{name: "none"},
		&fakeDetector{name: "first", info: first},
		&fakeDetector{name: "second", info: second},
	})
	if err != nil || info != first {
		t.Fatalf("Expected first recognizing detector to win, got %v, %v", info, err)
	}
}
