package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/schema"
	"github.com/linguanet/linguanet-go/internal/store"
	"github.com/patrickmn/go-cache"
	"golang.org/x/text/language"
)

// LanguagesMigrator brings customized entries of the legacy language
// repository into the v3 languages table. A legacy row is carried over when
// it differs from the v3 row of the same locale, or when no such row exists;
// rows identical to their v3 counterpart are already covered by the shipped
// defaults and are skipped.
//
// The legacy and v3 priority scales differ (legacy counts from 1, v3 from
// 10), so most rows compare as different and are written. That matches the
// installer the migration replaces: writing a correct row again is
// harmless, missing a customized one is not.
type LanguagesMigrator struct {
	store    Store
	log      *slog.Logger
	dryRun   bool
	defaults *cache.Cache
}

func NewLanguagesMigrator(s Store, log *slog.Logger, dryRun bool) *LanguagesMigrator {
	return &LanguagesMigrator{
		store:    s,
		log:      log,
		dryRun:   dryRun,
		defaults: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (m *LanguagesMigrator) Name() string { return "languages" }

func (m *LanguagesMigrator) Run(ctx context.Context) (*EntityReport, error) {
	report := NewEntityReport(m.Name())

	table := m.store.TableName(schema.TableLanguageRepository)
	if !m.store.TableExists(ctx, table) {
		m.log.Warn("legacy language repository not found, nothing to migrate", "table", table)
		return report, nil
	}

	rows, err := m.store.Select(ctx, fmt.Sprintf(
		"SELECT english_name, native_name, custom_name, is_rtl, iso_639_1, http_code, locale, priority FROM `%s` ORDER BY locale", table))
	if err != nil {
		return report, err
	}

	for _, row := range rows {
		legacy := schema.LegacyLanguage{
			EnglishName: store.AsString(row["english_name"]),
			NativeName:  store.AsString(row["native_name"]),
			CustomName:  store.AsString(row["custom_name"]),
			IsRTL:       int(store.AsInt64(row["is_rtl"])),
			ISO6391:     store.AsString(row["iso_639_1"]),
			HTTPCode:    store.AsString(row["http_code"]),
			Locale:      store.AsString(row["locale"]),
			Priority:    int(store.AsInt64(row["priority"])),
		}
		outcome, err := m.Migrate(ctx, legacy)
		if err := recordOutcome(m.log, report, legacy.Locale, outcome, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Migrate upserts one legacy language row into the v3 table, keyed by
// locale.
func (m *LanguagesMigrator) Migrate(ctx context.Context, legacy schema.LegacyLanguage) (Outcome, error) {
	if strings.TrimSpace(legacy.Locale) == "" {
		return OutcomeFailed, errors.Newf("language %q has no locale: %w", legacy.EnglishName, errors.ErrInvalidValue).
			Component("migration").
			Context("entity", "languages").
			Build()
	}

	current, err := m.defaultFor(ctx, legacy.Locale)
	if err != nil {
		return OutcomeFailed, err
	}
	if current != nil && !languageDiffers(legacy, current) {
		return OutcomeSkipped, nil
	}

	if m.dryRun {
		m.log.Info("dry run: would upsert language", "locale", legacy.Locale)
		return OutcomeMigrated, nil
	}

	bcp := NormalizeBCP47(legacy.HTTPCode, legacy.Locale)
	if _, err := language.Parse(bcp); err != nil && bcp != "" {
		m.log.Warn("keeping unparseable language tag verbatim", "locale", legacy.Locale, "tag", bcp)
	}
	set := store.Row{
		"english_name": legacy.EnglishName,
		"native_name":  legacy.NativeName,
		"custom_name":  legacy.CustomName,
		"rtl":          legacy.IsRTL != 0,
		"iso_639_1":    legacy.ISO6391,
		"bcp_47":       bcp,
		"priority":     legacy.Priority,
	}

	target := m.store.TableName(schema.TableLanguages)
	if current == nil {
		set["locale"] = legacy.Locale
		if _, err := m.store.Insert(ctx, target, set); err != nil {
			return OutcomeFailed, err
		}
	} else {
		if _, err := m.store.Update(ctx, target, set, store.Row{"locale": legacy.Locale}); err != nil {
			return OutcomeFailed, err
		}
	}
	m.defaults.Delete(legacy.Locale)
	return OutcomeMigrated, nil
}

// defaultFor returns the v3 language row for a locale, or nil when the
// locale is unknown to v3. Lookups are cached: repeated runs over large
// repositories hit the same handful of locales.
func (m *LanguagesMigrator) defaultFor(ctx context.Context, locale string) (*schema.Language, error) {
	if cached, ok := m.defaults.Get(locale); ok {
		return cached.(*schema.Language), nil
	}

	table := m.store.TableName(schema.TableLanguages)
	row, err := m.store.SelectOne(ctx, fmt.Sprintf(
		"SELECT english_name, native_name, custom_name, rtl, iso_639_1, locale, priority FROM `%s` WHERE locale = ? LIMIT 1", table),
		locale)
	if err != nil {
		return nil, err
	}

	var lang *schema.Language
	if row != nil {
		lang = &schema.Language{
			EnglishName: store.AsString(row["english_name"]),
			NativeName:  store.AsString(row["native_name"]),
			CustomName:  store.AsString(row["custom_name"]),
			RTL:         store.AsBool(row["rtl"]),
			ISO6391:     store.AsString(row["iso_639_1"]),
			Locale:      store.AsString(row["locale"]),
			Priority:    int(store.AsInt64(row["priority"])),
		}
	}
	m.defaults.Set(locale, lang, cache.DefaultExpiration)
	return lang, nil
}

// languageDiffers compares the fields a legacy row controls against the v3
// row. BCP 47 is derived during the write and deliberately not compared.
func languageDiffers(legacy schema.LegacyLanguage, current *schema.Language) bool {
	return legacy.EnglishName != current.EnglishName ||
		legacy.NativeName != current.NativeName ||
		legacy.CustomName != current.CustomName ||
		(legacy.IsRTL != 0) != current.RTL ||
		legacy.ISO6391 != current.ISO6391 ||
		legacy.Priority != current.Priority
}

// NormalizeBCP47 derives the BCP 47 tag for a legacy row. The legacy HTTP
// code is usually already a tag in sloppy casing ("pt-br"); when it is
// absent the underscore locale ("pt_BR") is converted. Values the parser
// rejects are kept verbatim rather than dropped.
func NormalizeBCP47(httpCode, locale string) string {
	candidate := strings.TrimSpace(httpCode)
	if candidate == "" {
		candidate = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	}
	tag, err := language.Parse(candidate)
	if err != nil {
		return candidate
	}
	return tag.String()
}
