package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Results go to stdout as indented json; progress goes to the log (stderr)
func writeJson(w io.Writer, result interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printJson(result interface{}) {
	if err := writeJson(os.Stdout, result); err != nil {
		log.Fatalf("Couldn't write json result: %s", err)
	}
}

// Default chunk map name when no output is given, stamped so repeated runs
// don't clobber each other
func chunkMapFilename(format string, now time.Time) string {
	return fmt.Sprintf("chunkmap_%s.%s", now.Format("20060102-150405"), format)
}

// Where an extracted file goes. Names come from the hex itself, so anything
// that could leave outdir is refused.
func extractPath(outdir string, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("Refusing to extract unsafe file name '%s'", name)
	}
	return filepath.Join(outdir, name), nil
}
