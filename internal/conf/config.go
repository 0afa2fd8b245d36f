// config.go: settings struct for the migration tool and the functions that
// load it from file, environment and defaults.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig holds settings for an optional rotating file log.
type LogConfig struct {
	Enabled  bool   // true to write a JSON log file alongside console output
	Path     string // path to the log file
	Rotation string // daily, weekly or size
	MaxSize  int64  // max log file size in bytes when rotation is size
}

// MySQLSettings describes the MySQL server holding both schemas.
type MySQLSettings struct {
	Username string // username for the database connection
	Password string // password for the database connection
	Database string // database name
	Host     string // host of the database server
	Port     int    // port of the database server
}

// SQLiteSettings describes a file-backed SQLite store, used by small
// installations and throughout the test suite.
type SQLiteSettings struct {
	Path string // path to the SQLite database file
}

// StoreSettings configures the relational store shared by the legacy and
// target schemas.
type StoreSettings struct {
	Type        string // "mysql" or "sqlite"
	TablePrefix string // prefix shared by every table of the installation
	Charset     string // default character set for created tables (MySQL)
	Collation   string // default collation for created tables (MySQL)
	MySQL       MySQLSettings
	SQLite      SQLiteSettings
}

// MigrationSettings selects what the migration run covers and how it writes.
type MigrationSettings struct {
	Entities      []string // subset of modules, relationships, redirections, languages
	DryRun        bool     // count and report without writing
	Throttle      int      // max writes per second, 0 for unlimited
	FailOnPartial bool     // non-zero exit when any record failed
	ReportPath    string   // optional YAML summary export path
	SkipPreflight bool     // skip environment checks before running
}

// ProgressSettings configures the optional HTTP endpoint serving live run
// progress and prometheus metrics.
type ProgressSettings struct {
	Enabled bool
	Listen  string // listen address, e.g. "0.0.0.0:8090"
}

// NotifySettings configures optional completion notifications.
type NotifySettings struct {
	Enabled bool
	URLs    []string // shoutrrr service URLs
}

// Settings is the root configuration for the tool.
type Settings struct {
	Debug bool // true to enable debug level logging

	Main struct {
		Name string    // instance name used in logs and notifications
		Log  LogConfig // file log settings
	}

	Store     StoreSettings
	Migration MigrationSettings
	Progress  ProgressSettings
	Notify    NotifySettings

	// Populated at startup from build metadata, never read from file.
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex

	// explicitConfigFile overrides config discovery when set.
	explicitConfigFile string
)

// SetConfigFile makes Load read an explicit config file instead of
// searching the default paths. Must be called before Load.
func SetConfigFile(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	explicitConfigFile = path
}

// Load reads the configuration file and environment variables into a fresh
// Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigType("yaml")

	if explicitConfigFile != "" {
		// An explicitly named file must exist; no silent fallback.
		viper.SetConfigFile(explicitConfigFile)
		setDefaultConfig()
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", explicitConfigFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first
// default config path and reads it back in.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}
