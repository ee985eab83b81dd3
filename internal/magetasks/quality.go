package magetasks

import (
	"fmt"
)

// QualityCheck runs linters, tests and the build. Lint findings are
// reported but only test and build failures fail the check.
func QualityCheck() error {
	PrintH1Header("prettytest Quality Assurance")

	if err := LintAll(); err != nil {
		PrintWarning("Linting issues found")
	}
	if err := LintSecurity(); err != nil && !IsCommandNotFound(err) {
		PrintWarning("Security scan issues found")
	}
	if err := TestAll(); err != nil {
		return fmt.Errorf("tests failed: %w", err)
	}
	if err := BuildAll(); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	PrintSuccess("QA complete!")
	return nil
}
