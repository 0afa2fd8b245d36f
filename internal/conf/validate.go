// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

// KnownEntities lists the migratable entity names in execution order.
var KnownEntities = []string{"modules", "relationships", "redirections", "languages"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateStoreSettings(&settings.Store); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMigrationSettings(&settings.Migration); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateProgressSettings(&settings.Progress); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateStoreSettings(settings *StoreSettings) error {
	var errs []string

	switch settings.Type {
	case "mysql":
		if settings.MySQL.Host == "" {
			errs = append(errs, "store.mysql.host must not be empty")
		}
		if settings.MySQL.Port <= 0 || settings.MySQL.Port > 65535 {
			errs = append(errs, fmt.Sprintf("store.mysql.port %d is out of range", settings.MySQL.Port))
		}
		if settings.MySQL.Database == "" {
			errs = append(errs, "store.mysql.database must not be empty")
		}
	case "sqlite":
		if settings.SQLite.Path == "" {
			errs = append(errs, "store.sqlite.path must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.type must be mysql or sqlite, got %q", settings.Type))
	}

	if settings.TablePrefix == "" {
		errs = append(errs, "store.tableprefix must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("store settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMigrationSettings(settings *MigrationSettings) error {
	var errs []string

	if len(settings.Entities) == 0 {
		errs = append(errs, "migration.entities must select at least one entity")
	}
	for _, entity := range settings.Entities {
		if !slices.Contains(KnownEntities, entity) {
			errs = append(errs, fmt.Sprintf("unknown migration entity %q", entity))
		}
	}

	if settings.Throttle < 0 {
		errs = append(errs, fmt.Sprintf("migration.throttle must not be negative, got %d", settings.Throttle))
	}

	if len(errs) > 0 {
		return fmt.Errorf("migration settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateProgressSettings(settings *ProgressSettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("progress.listen %q is not a valid host:port: %w", settings.Listen, err)
	}
	return nil
}
