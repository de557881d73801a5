package microbit

// Shortcuts which work directly on intel hex text.

func GetDeviceInfo(hexdata string) (*DeviceInfo, error) {
	img, err := ParseHex(hexdata)
	if err != nil {
		return nil, err
	}
	return DetectDevice(img)
}

// Every file stored in the MicroPython filesystem of the hex
func GetFiles(hexdata string) ([]*File, error) {
	img, err := ParseHex(hexdata)
	if err != nil {
		return nil, err
	}
	info, err := DetectDevice(img)
	if err != nil {
		return nil, err
	}
	return ReadFiles(img, info)
}

// Produce a new hex whose filesystem holds exactly the given files. Whatever
// was stored before is replaced.
func AddFiles(hexdata string, files []*File) (string, error) {
	img, err := ParseHex(hexdata)
	if err != nil {
		return "", err
	}
	info, err := DetectDevice(img)
	if err != nil {
		return "", err
	}
	result, err := WriteFiles(img, info, files)
	if err != nil {
		return "", err
	}
	return result.HexString()
}
