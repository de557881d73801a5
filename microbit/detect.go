package microbit

import (
	"log"
)

// Something that can figure out the flash layout of an image. Detect returns
// (nil, nil) when the image simply isn't what the detector looks for; an error
// means the detector found its magic but the structure behind it is broken.
type DeviceDetector interface {
	Name() string
	Detect(img *Image) (*DeviceInfo, error)
}

// Flash regions first: it's the more specific of the two, and V2 images
// carry UICR data as well
var DefaultDetectors = []DeviceDetector{
	&FlashRegionsDetector{},
	&UicrDetector{},
}

func DetectDevice(img *Image) (*DeviceInfo, error) {
	return DetectDeviceWith(img, DefaultDetectors)
}

// Try each detector in order, returning the first result. A broken structure
// in one detector doesn't stop the next from trying, but if nobody succeeds,
// the first such failure is reported.
func DetectDeviceWith(img *Image, detectors []DeviceDetector) (*DeviceInfo, error) {
	var firstErr error
	for _, d := range detectors {
		info, err := d.Detect(img)
		if err != nil {
			log.Printf("Detector %s found a malformed structure: %s", d.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if info != nil {
			return info, nil
		}
	}
	return nil, &NotMicroPythonError{
		Message: "Could not detect MicroPython in hex file. The hex file may not contain MicroPython or may be corrupted",
		Err:     firstErr,
	}
}
