package microbit

import (
	"fmt"
)

// The flash regions table lives at the very end of a flash page inside the
// MicroPython runtime on V2 builds. The header is read backwards from the page
// end; region rows sit directly below the header.
const (
	RegionsTablePageSize = 4096
	RegionsMagic1        = 0x597F30FE
	RegionsMagic2        = 0xC1B1D79D
	RegionsHeaderSize    = 16
	RegionsRowSize       = 16

	RegionSoftDevice  = 1
	RegionMicroPython = 2
	RegionFilesystem  = 3

	RegionHashNone    = 0
	RegionHashData    = 1
	RegionHashPointer = 2
)

type FlashRegion struct {
	Id        uint8
	HashType  uint8
	StartPage uint16
	Length    uint32
	HashData  uint64
}

type FlashRegionsTable struct {
	Version      uint16
	TableLength  uint16
	RegionCount  uint16
	PageSizeLog2 uint16
	EndAddress   uint32 // End of the page holding the table
	Regions      []FlashRegion
}

func (t *FlashRegionsTable) PageSize() uint32 {
	return 1 << t.PageSizeLog2
}

func (t *FlashRegionsTable) Region(id uint8) *FlashRegion {
	for i := range t.Regions {
		if t.Regions[i].Id == id {
			return &t.Regions[i]
		}
	}
	return nil
}

// Find the flash regions table anywhere in the image. Returns (nil, nil) if no
// page carries both magic values.
func ReadFlashRegionsTable(img *Image) (*FlashRegionsTable, error) {
	for _, page := range img.Pages(RegionsTablePageSize) {
		end := page + RegionsTablePageSize
		if img.Uint32(end-4) != RegionsMagic2 || img.Uint32(end-16) != RegionsMagic1 {
			continue
		}
		table := FlashRegionsTable{
			Version:      img.Uint16(end - 12),
			TableLength:  img.Uint16(end - 10),
			RegionCount:  img.Uint16(end - 8),
			PageSizeLog2: img.Uint16(end - 6),
			EndAddress:   end,
		}
		if table.PageSizeLog2 < 10 || table.PageSizeLog2 > 16 {
			return nil, fmt.Errorf("Flash regions table at 0x%X has bad page size log2 %d", page, table.PageSizeLog2)
		}
		maxRows := (RegionsTablePageSize - RegionsHeaderSize) / RegionsRowSize
		if int(table.RegionCount) > maxRows {
			return nil, fmt.Errorf("Flash regions table at 0x%X claims %d regions", page, table.RegionCount)
		}
		tableStart := end - RegionsHeaderSize
		for i := uint32(0); i < uint32(table.RegionCount); i++ {
			rowEnd := tableStart - i*RegionsRowSize
			table.Regions = append(table.Regions, FlashRegion{
				Id:        img.Byte(rowEnd - 16),
				HashType:  img.Byte(rowEnd - 15),
				StartPage: img.Uint16(rowEnd - 14),
				Length:    img.Uint32(rowEnd - 12),
				HashData:  img.Uint64(rowEnd - 8),
			})
		}
		return &table, nil
	}
	return nil, nil
}

type FlashRegionsDetector struct{}

func (d *FlashRegionsDetector) Name() string {
	return "flash-regions"
}

func (d *FlashRegionsDetector) Detect(img *Image) (*DeviceInfo, error) {
	table, err := ReadFlashRegionsTable(img)
	if err != nil || table == nil {
		return nil, err
	}
	mp := table.Region(RegionMicroPython)
	if mp == nil {
		return nil, fmt.Errorf("Flash regions table has no MicroPython region")
	}
	fs := table.Region(RegionFilesystem)
	if fs == nil {
		return nil, fmt.Errorf("Flash regions table has no filesystem region")
	}
	pageSize := table.PageSize()
	version := ""
	if mp.HashType == RegionHashPointer {
		version = img.CString(uint32(mp.HashData&0xFFFFFFFF), MaxVersionLength)
	}
	fsStart := uint32(fs.StartPage) * pageSize
	info := DeviceInfo{
		FlashPageSize:       pageSize,
		FlashSize:           FlashSizeV2,
		FlashStartAddress:   0,
		FlashEndAddress:     FlashSizeV2,
		RuntimeStartAddress: 0,
		RuntimeEndAddress:   table.EndAddress,
		FsStartAddress:      fsStart,
		FsEndAddress:        fsStart + fs.Length,
		DeviceVersion:       DeviceV2,
		MicroPythonVersion:  version,
		Detector:            d.Name(),
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("Flash regions table layout invalid: %w", err)
	}
	return &info, nil
}
