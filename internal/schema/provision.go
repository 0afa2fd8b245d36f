package schema

import (
	"fmt"

	"gorm.io/gorm"
)

// Namer maps a logical table name to its physical name. It matches the
// store's TableName method so provisioning and access agree on naming
// without this package depending on the store.
type Namer func(logical string) string

// SiteNamer maps a site id and logical name to the site's physical table.
type SiteNamer func(siteID uint64, logical string) string

// ProvisionNetwork creates the network-wide legacy tables and the target
// tables of one installation. Production installations already have all of
// these; tests and rehearsal databases build them from here.
func ProvisionNetwork(db *gorm.DB, name Namer) error {
	tables := []struct {
		logical string
		model   any
	}{
		{TableSites, &LegacySite{}},
		{TableNetworkOptions, &LegacyOption{}},
		{TableModules, &LegacyModule{}},
		{TableLanguageRepository, &LegacyLanguage{}},
		{TableContentRelations, &ContentRelation{}},
		{TableRedirections, &Redirection{}},
		{TableLanguages, &Language{}},
	}

	for _, t := range tables {
		if err := db.Table(name(t.logical)).AutoMigrate(t.model); err != nil {
			return fmt.Errorf("provisioning %s: %w", name(t.logical), err)
		}
	}
	return nil
}

// ProvisionSite creates the per-site legacy tables for one site.
func ProvisionSite(db *gorm.DB, name SiteNamer, siteID uint64) error {
	tables := []struct {
		logical string
		model   any
	}{
		{TableOptions, &LegacyOption{}},
		{TableTranslationLinks, &LegacyTranslationLink{}},
	}

	for _, t := range tables {
		if err := db.Table(name(siteID, t.logical)).AutoMigrate(t.model); err != nil {
			return fmt.Errorf("provisioning %s for site %d: %w", name(siteID, t.logical), siteID, err)
		}
	}
	return nil
}
