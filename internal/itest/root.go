//go:build integration

package itest

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// findRepoRoot walks up from this source file to the directory holding go.mod.
func findRepoRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("could not locate test source")
	}
	for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			return "", errors.New("could not locate go.mod")
		}
	}
}
