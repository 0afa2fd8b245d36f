// Package schema names the tables and options of a LinguaNet installation
// and carries GORM models of both the legacy and the target layouts. The
// models provision fixture and bookkeeping tables; the migrators themselves
// read and write through the store's query layer.
package schema

// Logical table names, prefixed by the store at access time. The options and
// translation_links tables exist per site and additionally carry the site
// number for every site after the first.
const (
	TableSites              = "sites"
	TableNetworkOptions     = "network_options"
	TableOptions            = "options"
	TableModules            = "modules"
	TableTranslationLinks   = "translation_links"
	TableLanguageRepository = "language_repository"

	TableContentRelations = "content_relations"
	TableRedirections     = "redirections"
	TableLanguages        = "languages"

	TableMigrationRuns = "migration_runs"

	// TableRedirectUnion is transient: created for the one combining query
	// of a redirections run and dropped on every exit path.
	TableRedirectUnion = "tmp_redirect_union"
)

// Option keys used by the migration.
const (
	// OptionModules is the network option holding the target module map,
	// one JSON object of module key to enabled flag.
	OptionModules = "linguanet_modules"

	// OptionRedirect is the per-site option holding that site's
	// redirection blob in the legacy layout.
	OptionRedirect = "linguanet_redirect"

	// OptionCheckMode forces a dry run when truthy. Installations set it
	// to vet a migration before committing to it.
	OptionCheckMode = "linguanet_check_mode"

	// SettingKeyRedirect is the setting_key under which migrated
	// redirections appear in the target table.
	SettingKeyRedirect = "redirect"
)

// RequiredLegacyTables lists the network-wide legacy tables a migration
// reads. Per-site tables are probed individually because sites may lack them.
var RequiredLegacyTables = []string{
	TableSites,
	TableNetworkOptions,
	TableModules,
	TableLanguageRepository,
}

// RequiredTargetTables lists the externally provisioned target tables that
// must exist before a run. The tool never creates these.
var RequiredTargetTables = []string{
	TableContentRelations,
	TableRedirections,
	TableLanguages,
}

// LegacySite is one row of the network's site registry.
type LegacySite struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Domain string `gorm:"column:domain;type:varchar(200);not null;default:''"`
	Path   string `gorm:"column:path;type:varchar(100);not null;default:''"`
}

// LegacyOption is one key-value row of an options or network_options table.
// The model provisions one table per site, so it declares no indexes: SQLite
// index names are database-wide and would collide across sites.
type LegacyOption struct {
	OptionID    uint64 `gorm:"column:option_id;primaryKey;autoIncrement"`
	OptionName  string `gorm:"column:option_name;type:varchar(191);not null;default:''"`
	OptionValue string `gorm:"column:option_value;type:text"`
}

// LegacyModule is one row of the network-wide modules table. Status is the
// raw legacy flag, "on" or "off".
type LegacyModule struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Name   string `gorm:"column:name;type:varchar(191);not null"`
	Status string `gorm:"column:status;type:varchar(20);not null;default:'off'"`
}

// LegacyTranslationLink is one row of a per-site translation_links table.
// LinkID is bookkeeping and MlType never left the value "content"; neither
// survives the migration.
type LegacyTranslationLink struct {
	LinkID          uint64 `gorm:"column:link_id;primaryKey;autoIncrement"`
	MlSourceSiteID  uint64 `gorm:"column:ml_source_siteid;not null"`
	MlSourceContent uint64 `gorm:"column:ml_source_contentid;not null"`
	MlSiteID        uint64 `gorm:"column:ml_siteid;not null"`
	MlContentID     uint64 `gorm:"column:ml_contentid;not null"`
	MlType          string `gorm:"column:ml_type;type:varchar(20);not null;default:'content'"`
}

// LegacyLanguage is one row of the network-wide custom language repository.
type LegacyLanguage struct {
	ID          uint64 `gorm:"column:ID;primaryKey;autoIncrement"`
	EnglishName string `gorm:"column:english_name;type:varchar(100);not null"`
	NativeName  string `gorm:"column:native_name;type:varchar(100);not null"`
	CustomName  string `gorm:"column:custom_name;type:varchar(100)"`
	IsRTL       int    `gorm:"column:is_rtl;not null;default:0"`
	ISO6391     string `gorm:"column:iso_639_1;type:varchar(10)"`
	HTTPCode    string `gorm:"column:http_code;type:varchar(20)"`
	Locale      string `gorm:"column:locale;type:varchar(20);not null"`
	Priority    int    `gorm:"column:priority;not null;default:1"`
}

// ContentRelation is one row of the target content_relations table. The
// four site/content columns form the natural key.
type ContentRelation struct {
	ID              uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	SourceSiteID    uint64 `gorm:"column:source_site_id;not null;index:idx_relation_source"`
	SourceContentID uint64 `gorm:"column:source_content_id;not null;index:idx_relation_source"`
	TargetSiteID    uint64 `gorm:"column:target_site_id;not null"`
	TargetContentID uint64 `gorm:"column:target_content_id;not null"`
}

// Redirection is one row of the target redirections table. (site_id,
// setting_key) is the natural key.
type Redirection struct {
	ID           uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	SiteID       uint64 `gorm:"column:site_id;not null;index:idx_redirection_site"`
	SettingKey   string `gorm:"column:setting_key;type:varchar(100);not null"`
	SettingValue string `gorm:"column:setting_value;type:varchar(255);not null"`
}

// Language is one row of the target languages table, keyed by locale.
type Language struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	EnglishName string `gorm:"column:english_name;type:varchar(100);not null"`
	NativeName  string `gorm:"column:native_name;type:varchar(100);not null"`
	CustomName  string `gorm:"column:custom_name;type:varchar(100)"`
	RTL         bool   `gorm:"column:rtl;not null;default:false"`
	ISO6391     string `gorm:"column:iso_639_1;type:varchar(10)"`
	BCP47       string `gorm:"column:bcp_47;type:varchar(20)"`
	Locale      string `gorm:"column:locale;type:varchar(20);not null;uniqueIndex"`
	Priority    int    `gorm:"column:priority;not null;default:10"`
}
