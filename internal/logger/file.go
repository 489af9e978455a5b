package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// TeeToFile sends log output to stdout and the file at path. An empty path is a no-op
// and returns a nil file.
func TeeToFile(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	SetOutput(mw)
	return file, nil
}
