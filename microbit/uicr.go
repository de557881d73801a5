package microbit

import (
	"fmt"
)

// MicroPython stores a small layout block in the customer area of the nRF
// UICR registers, which end up in the hex as data above 0x10001000.
const (
	UicrStart             = 0x10001000
	UicrCustomerOffset    = 0x80
	UicrCustomerUpyOffset = 0x40
	UicrUpyStart          = UicrStart + UicrCustomerOffset + UicrCustomerUpyOffset

	UicrMagicV1 = 0x17EEB07C
	UicrMagicV2 = 0x47EEB07C

	uicrMagicOffset           = 0
	uicrEndMarkerOffset       = 4
	uicrPageSizeOffset        = 8
	uicrStartPageOffset       = 12
	uicrPagesUsedOffset       = 14
	uicrDelimiterOffset       = 16
	uicrVersionLocationOffset = 20
	uicrRegionsTermOffset     = 24
	uicrBlockSize             = 28
)

type UicrData struct {
	Magic           uint32
	EndMarker       uint32
	PageSizeLog2    uint32
	StartPage       uint16
	PagesUsed       uint16
	Delimiter       uint32
	VersionLocation uint32
	RegionsTerm     uint32
}

func (u *UicrData) DeviceVersion() (DeviceVersion, bool) {
	switch u.Magic {
	case UicrMagicV1:
		return DeviceV1, true
	case UicrMagicV2:
		return DeviceV2, true
	}
	return 0, false
}

// Pull the raw MicroPython UICR block. Returns nil if the image holds no data
// for the magic value at all.
func ReadUicrData(img *Image) *UicrData {
	for i := uint32(0); i < 4; i++ {
		if !img.Has(UicrUpyStart + i) {
			return nil
		}
	}
	return &UicrData{
		Magic:           img.Uint32(UicrUpyStart + uicrMagicOffset),
		EndMarker:       img.Uint32(UicrUpyStart + uicrEndMarkerOffset),
		PageSizeLog2:    img.Uint32(UicrUpyStart + uicrPageSizeOffset),
		StartPage:       img.Uint16(UicrUpyStart + uicrStartPageOffset),
		PagesUsed:       img.Uint16(UicrUpyStart + uicrPagesUsedOffset),
		Delimiter:       img.Uint32(UicrUpyStart + uicrDelimiterOffset),
		VersionLocation: img.Uint32(UicrUpyStart + uicrVersionLocationOffset),
		RegionsTerm:     img.Uint32(UicrUpyStart + uicrRegionsTermOffset),
	}
}

type UicrDetector struct{}

func (d *UicrDetector) Name() string {
	return "uicr"
}

func (d *UicrDetector) Detect(img *Image) (*DeviceInfo, error) {
	uicr := ReadUicrData(img)
	if uicr == nil {
		return nil, nil
	}
	version, ok := uicr.DeviceVersion()
	if !ok {
		return nil, nil
	}
	if uicr.PageSizeLog2 < 10 || uicr.PageSizeLog2 > 12 {
		return nil, fmt.Errorf("UICR page size log2 %d out of range", uicr.PageSizeLog2)
	}
	pageSize := uint32(1) << uicr.PageSizeLog2
	flashSize, fsEnd := uint32(FlashSizeV1), uint32(FsEndV1)
	if version == DeviceV2 {
		flashSize, fsEnd = FlashSizeV2, FsEndV2
	}
	flashStart := uint32(uicr.StartPage) * pageSize
	runtimeEnd := uint32(uicr.PagesUsed) * pageSize
	info := DeviceInfo{
		FlashPageSize:       pageSize,
		FlashSize:           flashSize,
		FlashStartAddress:   flashStart,
		FlashEndAddress:     flashStart + flashSize,
		RuntimeStartAddress: flashStart,
		RuntimeEndAddress:   runtimeEnd,
		FsStartAddress:      runtimeEnd,
		FsEndAddress:        fsEnd,
		DeviceVersion:       version,
		MicroPythonVersion:  img.CString(uicr.VersionLocation, MaxVersionLength),
		Detector:            d.Name(),
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("UICR layout invalid: %w", err)
	}
	return &info, nil
}
