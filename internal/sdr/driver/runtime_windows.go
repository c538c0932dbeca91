//go:build windows

package driver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FindRuntime looks for a bundled binary next to the executable or in the
// working directory (bin/<package>/windows/x64/<runtime>.exe), then falls
// back to PATH.
func FindRuntime(runtime string) (string, error) {
	var lookup []string

	if exePath, err := os.Executable(); err == nil {
		lookup = append(lookup, filepath.Dir(exePath))
	}
	if wd, err := os.Getwd(); err == nil {
		lookup = append(lookup, wd)
	}

	for _, exeDir := range lookup {
		matches, err := filepath.Glob(filepath.Join(exeDir, "bin", "*", "windows", "x64", fmt.Sprintf("%s.exe", runtime)))
		if err != nil || len(matches) == 0 {
			continue // continue to next directory
		}

		binPath := matches[0]
		if _, err = os.Stat(binPath); err != nil {
			continue
		}

		return binPath, nil
	}

	if binPath, err := exec.LookPath(runtime); err == nil {
		return binPath, nil
	}

	return "", NewRuntimeError(fmt.Sprintf("failed to find binary '%s'", runtime))
}
