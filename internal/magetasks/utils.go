package magetasks

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/magefile/mage/sh"
)

// Run announces label and runs cmd with its output shown.
func Run(label, cmd string, args ...string) error {
	PrintInfo(label)
	return sh.RunV(cmd, args...)
}

// IsCommandNotFound checks if the error indicates the command was not found.
// sh formats the exec error into its message, so string matching is the
// only check that survives it.
func IsCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "executable file not found") ||
		strings.Contains(errStr, "no such file or directory")
}

// optional runs an external tool, warning instead of failing when it is not
// installed.
func optional(label, install, cmd string, args ...string) error {
	err := Run(label, cmd, args...)
	switch {
	case err == nil:
		return nil
	case IsCommandNotFound(err):
		PrintWarning(fmt.Sprintf("%s not found (install: go install %s)", label, install))
		return err
	default:
		return fmt.Errorf("%s failed: %w", strings.ToLower(label), err)
	}
}
