package microbit

import (
	"bytes"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	Board_MicrobitDAPLink = "BBC micro:bit (DAPLink)"

	ReplBaudRate     = 115200
	ReplProbeTimeout = 2 * time.Second
)

// Boards we can recognize from the usb interface alone
var VidPidTable = map[string]string{
	"VID:PID=0D28:0204": Board_MicrobitDAPLink,
}

// A serial port which looks like an attached micro:bit
type BoardInfo struct {
	VidPid             string
	Port               string
	Product            string
	SerialNumber       string
	BoardType          string
	MicroPythonVersion string `json:",omitempty"`
}

func (b *BoardInfo) SmallString() string {
	return fmt.Sprintf("%s(%s)", b.Port, b.VidPid)
}

// Pick the boards out of a port listing
func FilterBoards(ports []*enumerator.PortDetails) []*BoardInfo {
	result := make([]*BoardInfo, 0)
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		vidpid := fmt.Sprintf("VID:PID=%s:%s", strings.ToUpper(port.VID), strings.ToUpper(port.PID))
		board, ok := VidPidTable[vidpid]
		if !ok {
			continue
		}
		result = append(result, &BoardInfo{
			VidPid:       vidpid,
			Port:         port.Name,
			Product:      port.Product,
			SerialNumber: port.SerialNumber,
			BoardType:    board,
		})
	}
	return result
}

// All micro:bit boards currently attached
func GetBoards() ([]*BoardInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	return FilterBoards(ports), nil
}

var bannerRegex = regexp.MustCompile(`MicroPython (v[^\s;,]+)`)

// Find the version in a REPL banner, or "" if there isn't one
func ParseReplBanner(banner []byte) string {
	match := bannerRegex.FindSubmatch(banner)
	if match == nil {
		return ""
	}
	return string(match[1])
}

// Interrupt whatever the board is running and ask the REPL for its banner,
// filling in the MicroPython version if one answers
func ProbeBoard(board *BoardInfo) error {
	port, err := serial.Open(board.Port, &serial.Mode{BaudRate: ReplBaudRate})
	if err != nil {
		return err
	}
	defer port.Close()
	err = port.SetReadTimeout(ReplProbeTimeout)
	if err != nil {
		return err
	}
	// ctrl-c to stop the program, ctrl-b for a friendly REPL, which prints the banner
	_, err = port.Write([]byte{0x03, 0x03, 0x02})
	if err != nil {
		return err
	}
	var banner bytes.Buffer
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			break // timeout
		}
		banner.Write(buf[:n])
		if version := ParseReplBanner(banner.Bytes()); version != "" {
			board.MicroPythonVersion = version
			log.Printf("Board %s runs MicroPython %s\n", board.SmallString(), version)
			return nil
		}
	}
	return fmt.Errorf("No MicroPython banner from %s", board.Port)
}
