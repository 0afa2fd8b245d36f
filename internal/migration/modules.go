package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/schema"
	"github.com/linguanet/linguanet-go/internal/store"
)

// Legacy module names carry a class prefix and a role suffix that the v3
// registry dropped; "class-mlp_glossary_module" registers as "glossary".
const (
	legacyModulePrefix = "class-mlp_"
	legacyModuleSuffix = "_module"
)

// obsoleteModuleKeys are legacy modules with no v3 counterpart. They are
// dropped without an error so old installations migrate cleanly.
var obsoleteModuleKeys = map[string]bool{
	"cpt_translator":      true,
	"advanced_translator": true,
	"quicklink":           true,
}

// ModulesMigrator folds the per-row legacy module registry into the single
// JSON module map stored as a network option.
type ModulesMigrator struct {
	store  Store
	log    *slog.Logger
	dryRun bool
}

func NewModulesMigrator(s Store, log *slog.Logger, dryRun bool) *ModulesMigrator {
	return &ModulesMigrator{store: s, log: log, dryRun: dryRun}
}

func (m *ModulesMigrator) Name() string { return "modules" }

func (m *ModulesMigrator) Run(ctx context.Context) (*EntityReport, error) {
	report := NewEntityReport(m.Name())

	table := m.store.TableName(schema.TableModules)
	if !m.store.TableExists(ctx, table) {
		m.log.Warn("legacy modules table not found, nothing to migrate", "table", table)
		return report, nil
	}

	rows, err := m.store.Select(ctx,
		fmt.Sprintf("SELECT name, status FROM `%s` ORDER BY id", table))
	if err != nil {
		return report, err
	}

	for _, row := range rows {
		legacy := schema.LegacyModule{
			Name:   store.AsString(row["name"]),
			Status: store.AsString(row["status"]),
		}
		outcome, err := m.Migrate(ctx, legacy)
		if err := recordOutcome(m.log, report, legacy.Name, outcome, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Migrate carries a single legacy module row into the v3 module map.
// Obsolete modules and entries already present with the same enabled state
// are skipped. The module map is re-read on every call so that repeated
// runs, and runs interleaved with operator edits, merge instead of clobber.
func (m *ModulesMigrator) Migrate(ctx context.Context, legacy schema.LegacyModule) (Outcome, error) {
	key := NormalizeModuleKey(legacy.Name)
	if key == "" {
		return OutcomeFailed, errors.Newf("module name %q normalizes to an empty key: %w", legacy.Name, errors.ErrInvalidValue).
			Component("migration").
			Context("entity", "modules").
			Build()
	}
	if obsoleteModuleKeys[key] {
		m.log.Debug("dropping obsolete module", "module", key)
		return OutcomeSkipped, nil
	}

	enabled, err := moduleEnabled(legacy.Status)
	if err != nil {
		return OutcomeFailed, errors.Newf("module %q has status %q: %w", legacy.Name, legacy.Status, err).
			Component("migration").
			Context("entity", "modules").
			Build()
	}

	modules, err := m.loadModuleMap(ctx)
	if err != nil {
		return OutcomeFailed, err
	}
	if current, ok := modules[key]; ok && current == enabled {
		return OutcomeSkipped, nil
	}

	if m.dryRun {
		m.log.Info("dry run: would register module", "module", key, "enabled", enabled)
		return OutcomeMigrated, nil
	}

	modules[key] = enabled
	blob, err := json.Marshal(modules)
	if err != nil {
		return OutcomeFailed, errors.New(err).Component("migration").Build()
	}
	if err := m.store.SetNetworkOption(ctx, schema.OptionModules, string(blob)); err != nil {
		return OutcomeFailed, err
	}
	m.log.Debug("module registered", "module", key, "enabled", enabled)
	return OutcomeMigrated, nil
}

// loadModuleMap reads the current v3 module map, treating a missing or
// empty option as an empty map.
func (m *ModulesMigrator) loadModuleMap(ctx context.Context) (map[string]bool, error) {
	raw, found, err := m.store.NetworkOption(ctx, schema.OptionModules)
	if err != nil {
		return nil, err
	}
	modules := map[string]bool{}
	if !found || strings.TrimSpace(raw) == "" {
		return modules, nil
	}
	if err := json.Unmarshal([]byte(raw), &modules); err != nil {
		return nil, errors.Newf("option %s holds malformed JSON: %w", schema.OptionModules, errors.ErrInvalidValue).
			Component("migration").
			Context("entity", "modules").
			Build()
	}
	return modules, nil
}

// NormalizeModuleKey converts a legacy module name to its v3 registry key.
func NormalizeModuleKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, legacyModulePrefix)
	key = strings.TrimSuffix(key, legacyModuleSuffix)
	return key
}

// moduleEnabled maps the legacy textual status to the v3 boolean. Anything
// other than the two documented states is a data error, not a default.
func moduleEnabled(status string) (bool, error) {
	switch status {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, errors.ErrInvalidStatus
	}
}
