// Package preflight validates that an installation is ready to migrate.
// Checks are advisory until the runner is started with them enforced; the
// check command prints them without side effects.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/linguanet/linguanet-go/internal/conf"
	"github.com/linguanet/linguanet-go/internal/schema"
	"github.com/linguanet/linguanet-go/internal/store"
)

// Check status constants.
const (
	CheckStatusPassed  = "passed"
	CheckStatusFailed  = "failed"
	CheckStatusWarning = "warning"
	CheckStatusSkipped = "skipped"
	CheckStatusError   = "error"
)

// Check severity constants.
const (
	CheckSeverityCritical = "critical"
	CheckSeverityWarning  = "warning"
)

// MinDiskSpaceBytes is the minimum free disk space required next to a
// SQLite store (256MB). The migration itself writes little; the headroom
// covers the WAL and the transient aggregation table.
const MinDiskSpaceBytes = 256 * 1024 * 1024

// MinMemoryBytes is the minimum recommended free memory (128MB).
const MinMemoryBytes = 128 * 1024 * 1024

// Check is a single prerequisite check result.
type Check struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Status   string `yaml:"status" json:"status"`
	Message  string `yaml:"message" json:"message"`
	Severity string `yaml:"severity" json:"severity"`
}

// Result aggregates all prerequisite checks of one inspection.
type Result struct {
	AllPassed        bool      `yaml:"all_passed" json:"all_passed"`
	CanMigrate       bool      `yaml:"can_migrate" json:"can_migrate"`
	Checks           []Check   `yaml:"checks" json:"checks"`
	CriticalFailures int       `yaml:"critical_failures" json:"critical_failures"`
	Warnings         int       `yaml:"warnings" json:"warnings"`
	CheckedAt        time.Time `yaml:"checked_at" json:"checked_at"`
}

// Checker inspects one installation.
type Checker struct {
	store    *store.Store
	settings *conf.Settings
	log      *slog.Logger
}

func New(s *store.Store, settings *conf.Settings, log *slog.Logger) *Checker {
	return &Checker{store: s, settings: settings, log: log}
}

// Run executes every check. Critical failures block a migration; warnings
// do not.
func (c *Checker) Run(ctx context.Context) *Result {
	checks := make([]Check, 0, 12)

	reachable := c.checkStoreReachable(ctx)
	checks = append(checks, reachable)
	if reachable.Status == CheckStatusPassed {
		checks = append(checks, c.checkTables(ctx, "legacy", schema.RequiredLegacyTables)...)
		checks = append(checks, c.checkTables(ctx, "target", schema.RequiredTargetTables)...)
		checks = append(checks, c.checkCheckMode(ctx))
	}
	checks = append(checks, c.checkDiskSpace(), c.checkMemoryAvailable())

	result := &Result{Checks: checks, CheckedAt: time.Now().UTC()}
	for _, check := range checks {
		switch check.Status {
		case CheckStatusFailed, CheckStatusError:
			if check.Severity == CheckSeverityCritical {
				result.CriticalFailures++
			}
		case CheckStatusWarning:
			result.Warnings++
		}
	}
	result.AllPassed = result.CriticalFailures == 0 && result.Warnings == 0
	result.CanMigrate = result.CriticalFailures == 0

	c.log.Info("preflight checks complete",
		"can_migrate", result.CanMigrate,
		"critical_failures", result.CriticalFailures,
		"warnings", result.Warnings)
	return result
}

func (c *Checker) checkStoreReachable(ctx context.Context) Check {
	check := Check{
		ID:       "store_reachable",
		Name:     "Store Connection",
		Severity: CheckSeverityCritical,
	}
	if err := c.store.Ping(ctx); err != nil {
		check.Status = CheckStatusFailed
		check.Message = fmt.Sprintf("Cannot reach the store: %v", err)
		return check
	}
	check.Status = CheckStatusPassed
	check.Message = "Connected"
	return check
}

// checkTables verifies the presence of network-wide tables. Per-site
// tables are deliberately not checked here: a site missing them simply
// contributes nothing.
func (c *Checker) checkTables(ctx context.Context, kind string, logical []string) []Check {
	checks := make([]Check, 0, len(logical))
	for _, name := range logical {
		table := c.store.TableName(name)
		check := Check{
			ID:       fmt.Sprintf("%s_table_%s", kind, name),
			Name:     fmt.Sprintf("Table %s", table),
			Severity: CheckSeverityCritical,
		}
		if c.store.TableExists(ctx, table) {
			check.Status = CheckStatusPassed
			check.Message = "Present"
		} else {
			check.Status = CheckStatusFailed
			check.Message = fmt.Sprintf("Required %s table %s is missing", kind, table)
		}
		checks = append(checks, check)
	}
	return checks
}

// checkCheckMode surfaces the network option that forces dry runs, so an
// operator is not surprised by a run that writes nothing.
func (c *Checker) checkCheckMode(ctx context.Context) Check {
	check := Check{
		ID:       "check_mode",
		Name:     "Check Mode",
		Severity: CheckSeverityWarning,
	}
	raw, found, err := c.store.NetworkOption(ctx, schema.OptionCheckMode)
	if err != nil {
		check.Status = CheckStatusError
		check.Message = fmt.Sprintf("Failed to read %s: %v", schema.OptionCheckMode, err)
		return check
	}
	if found && store.AsBool(raw) {
		check.Status = CheckStatusWarning
		check.Message = "Check mode is enabled, every run will be a dry run"
	} else {
		check.Status = CheckStatusPassed
		check.Message = "Not set"
	}
	return check
}

func (c *Checker) checkDiskSpace() Check {
	check := Check{
		ID:       "disk_space",
		Name:     "Disk Space",
		Severity: CheckSeverityCritical,
	}
	if c.settings.Store.Type != "sqlite" {
		check.Status = CheckStatusSkipped
		check.Message = "Store is not file-backed"
		return check
	}

	dir := databaseDirectory(c.settings.Store.SQLite.Path)
	usage, err := disk.Usage(dir)
	if err != nil {
		check.Status = CheckStatusError
		check.Message = fmt.Sprintf("Failed to check disk space on %s: %v", dir, err)
		return check
	}

	freeMB := usage.Free / (1024 * 1024)
	if usage.Free >= MinDiskSpaceBytes {
		check.Status = CheckStatusPassed
		check.Message = fmt.Sprintf("%dMB available (need %dMB)", freeMB, MinDiskSpaceBytes/(1024*1024))
	} else {
		check.Status = CheckStatusFailed
		check.Message = fmt.Sprintf("%dMB available, need at least %dMB", freeMB, MinDiskSpaceBytes/(1024*1024))
	}
	return check
}

func (c *Checker) checkMemoryAvailable() Check {
	check := Check{
		ID:       "memory_available",
		Name:     "Available Memory",
		Severity: CheckSeverityWarning,
	}
	v, err := mem.VirtualMemory()
	if err != nil {
		check.Status = CheckStatusSkipped
		check.Message = "Could not check memory"
		return check
	}

	availableMB := v.Available / (1024 * 1024)
	if v.Available >= MinMemoryBytes {
		check.Status = CheckStatusPassed
		check.Message = fmt.Sprintf("%dMB available", availableMB)
	} else {
		check.Status = CheckStatusWarning
		check.Message = fmt.Sprintf("%dMB available, recommend >= %dMB", availableMB, MinMemoryBytes/(1024*1024))
	}
	return check
}

// databaseDirectory resolves the directory holding the SQLite file, with
// symlinks resolved so container volume mounts report the right filesystem.
func databaseDirectory(dbPath string) string {
	if dbPath == "" {
		return "."
	}
	if !filepath.IsAbs(dbPath) {
		if abs, err := filepath.Abs(dbPath); err == nil {
			dbPath = abs
		}
	}
	if resolved, err := filepath.EvalSymlinks(dbPath); err == nil {
		dbPath = resolved
	}
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); err == nil {
		return dir
	}
	return "."
}
