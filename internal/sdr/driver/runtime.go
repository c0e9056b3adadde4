//go:build !windows

package driver

import (
	"errors"
	"fmt"
	"os/exec"
)

// FindRuntime locates a receiver tool in PATH.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", NewRuntimeError(fmt.Sprintf("`%s` not found in PATH", runtime), err)
		}
		return "", NewRuntimeError(fmt.Sprintf("failed to locate `%s`", runtime), err)
	}

	return binPath, nil
}
