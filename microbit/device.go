package microbit

import (
	"fmt"
)

type DeviceVersion int

const (
	DeviceV1 DeviceVersion = 1
	DeviceV2 DeviceVersion = 2
)

func (v DeviceVersion) String() string {
	switch v {
	case DeviceV1:
		return "V1"
	case DeviceV2:
		return "V2"
	}
	return fmt.Sprintf("Unknown(%d)", int(v))
}

func (v DeviceVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Flash layout of a micro:bit MicroPython image, as found by one of the
// detectors. Addresses are absolute flash addresses; ends are exclusive.
type DeviceInfo struct {
	FlashPageSize       uint32
	FlashSize           uint32
	FlashStartAddress   uint32
	FlashEndAddress     uint32
	RuntimeStartAddress uint32
	RuntimeEndAddress   uint32
	FsStartAddress      uint32
	FsEndAddress        uint32
	DeviceVersion       DeviceVersion
	MicroPythonVersion  string
	Detector            string // Which strategy produced this info
}

func (info *DeviceInfo) FsSize() uint32 {
	return info.FsEndAddress - info.FsStartAddress
}

// Check that the regions are ordered and the runtime/filesystem boundaries
// sit on page boundaries.
func (info *DeviceInfo) Validate() error {
	if info.FlashPageSize == 0 {
		return fmt.Errorf("Flash page size is 0")
	}
	ordered := []struct {
		name  string
		value uint32
	}{
		{"flash start", info.FlashStartAddress},
		{"runtime start", info.RuntimeStartAddress},
		{"runtime end", info.RuntimeEndAddress},
		{"filesystem start", info.FsStartAddress},
		{"filesystem end", info.FsEndAddress},
		{"flash end", info.FlashEndAddress},
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].value > ordered[i].value {
			return fmt.Errorf("%s (0x%X) is past %s (0x%X)",
				ordered[i-1].name, ordered[i-1].value, ordered[i].name, ordered[i].value)
		}
	}
	for _, o := range ordered[1:5] {
		if o.value%info.FlashPageSize != 0 {
			return fmt.Errorf("%s (0x%X) not aligned to page size %d", o.name, o.value, info.FlashPageSize)
		}
	}
	return nil
}

// A short single line description, for logs
func (info *DeviceInfo) SmallString() string {
	return fmt.Sprintf("micro:bit %s, MicroPython '%s', fs 0x%X-0x%X (%s)",
		info.DeviceVersion, info.MicroPythonVersion, info.FsStartAddress, info.FsEndAddress, info.Detector)
}
