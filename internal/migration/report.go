package migration

import (
	"os"
	"path/filepath"

	"github.com/linguanet/linguanet-go/internal/errors"
	"gopkg.in/yaml.v3"
)

// WriteReport exports a run summary as YAML, creating parent directories
// as needed. Operators attach these reports to upgrade tickets.
func WriteReport(path string, summary *Summary) error {
	out, err := yaml.Marshal(summary)
	if err != nil {
		return errors.New(err).
			Component("migration").
			Context("operation", "render_report").
			Build()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("migration").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.New(err).
			Component("migration").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
