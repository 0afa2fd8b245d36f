// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"

	"github.com/linguanet/linguanet-go/internal/logging"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "LinguaNet-Migrate")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "linguanet-migrate.log")
	viper.SetDefault("main.log.rotation", logging.RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("store.type", "mysql")
	viper.SetDefault("store.tableprefix", "ln_")
	viper.SetDefault("store.charset", "utf8mb4")
	viper.SetDefault("store.collation", "utf8mb4_unicode_520_ci")

	viper.SetDefault("store.mysql.username", "linguanet")
	viper.SetDefault("store.mysql.password", "secret")
	viper.SetDefault("store.mysql.database", "linguanet")
	viper.SetDefault("store.mysql.host", "localhost")
	viper.SetDefault("store.mysql.port", 3306)

	viper.SetDefault("store.sqlite.path", "linguanet.db")

	viper.SetDefault("migration.entities", []string{
		"modules", "relationships", "redirections", "languages",
	})
	viper.SetDefault("migration.dryrun", false)
	viper.SetDefault("migration.throttle", 0)
	viper.SetDefault("migration.failonpartial", false)
	viper.SetDefault("migration.reportpath", "")
	viper.SetDefault("migration.skippreflight", false)

	viper.SetDefault("progress.enabled", false)
	viper.SetDefault("progress.listen", "0.0.0.0:8090")

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.urls", []string{})
}
