package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/randomouscrap98/upyfs/microbit"
)

// Length can be a number or a hex file; for a hex, the file is made exactly
// as large as the filesystem can hold under the given name.
func getLength(filename string, arg string) (int, error) {
	length, err := strconv.Atoi(arg)
	if err == nil {
		if length < 0 {
			return 0, fmt.Errorf("length %d is negative", length)
		}
		return length, nil
	}
	raw, err := os.ReadFile(arg)
	if err != nil {
		return 0, err
	}
	img, err := microbit.ParseHex(string(raw))
	if err != nil {
		return 0, err
	}
	info, err := microbit.DetectDevice(img)
	if err != nil {
		return 0, err
	}
	layout, err := microbit.NewLayout(img, info)
	if err != nil {
		return 0, err
	}
	return layout.MaxContentSize(len(filepath.Base(filename))), nil
}

func main() {
	if len(os.Args) != 3 {
		fmt.Println("Usage: go run main.go <filename> <length|hexfile>")
		return
	}

	length, err := getLength(os.Args[1], os.Args[2])
	if err != nil {
		fmt.Println("Error: can't get length: ", err)
		return
	}

	filename := os.Args[1]
	file, err := os.Create(filename)
	if err != nil {
		fmt.Println("Error opening file:", err)
		return
	}
	defer file.Close()

	data := make([]byte, length)

	// Write very obvious data: constantly increasing values
	for i := 0; i < length; i++ {
		data[i] = uint8(i & 0xFF)
	}

	_, err = file.Write(data)
	if err != nil {
		fmt.Println("Error writing file: ", err)
		return
	}

	fmt.Printf("Wrote file %s (%d bytes)\n", filename, length)
}
