package magetasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/magefile/mage/sh"
)

// BuildAll builds the prettytest binary with version information stamped in.
func BuildAll() error {
	PrintH2Header("Build")

	date := time.Now().UTC().Format(time.RFC3339)
	ldflags := strings.Join([]string{
		"-s", "-w",
		versionFlag("Version", gitOutput("dev", "describe", "--tags", "--always", "--dirty", "--match=v*")),
		versionFlag("CommitHash", gitOutput("unknown", "rev-parse", "--short", "HEAD")),
		versionFlag("BuildDate", date),
	}, " ")

	PrintInfo("Building prettytest...")
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", BinPath, MainPackage); err != nil {
		PrintError("Build failed")
		return err
	}

	PrintSuccess(fmt.Sprintf("Built: %s", BinPath))
	return nil
}

// Clean removes build artifacts.
func Clean() error {
	PrintH2Header("Clean")

	if err := sh.Rm("bin"); err != nil {
		return err
	}
	if err := sh.Rm("coverage.out"); err != nil {
		return err
	}
	if err := sh.Run("go", "clean", "-cache"); err != nil {
		PrintWarning("go clean -cache failed: " + err.Error())
	}

	PrintSuccess("Cleaned build artifacts")
	return nil
}

func versionFlag(name, value string) string {
	return fmt.Sprintf("-X '%s/internal/version.%s=%s'", ModulePath, name, value)
}

// gitOutput runs git with args, returning fallback when git fails.
func gitOutput(fallback string, args ...string) string {
	out, err := sh.Output("git", args...)
	if err != nil || out == "" {
		return fallback
	}
	return strings.TrimSpace(out)
}
