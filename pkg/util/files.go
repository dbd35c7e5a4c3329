package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TempName returns a globally-unique file path inside dir. Concurrent
// pipeline invocations share the same temp directory, so names must never
// collide.
func TempName(dir, stage, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", stage, uuid.NewString(), ext))
}

// CleanupFiles removes multiple files, ignoring errors
func CleanupFiles(paths ...string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}
