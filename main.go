package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/linguanet/linguanet-go/cmd"
	"github.com/linguanet/linguanet-go/internal/conf"
	"github.com/linguanet/linguanet-go/internal/logging"
)

// Populated through -ldflags at build time.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	if path := configFlagPath(); path != "" {
		conf.SetConfigFile(path)
	}

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		os.Exit(1)
	}
}

// configFlagPath pre-scans the arguments for --config. The configuration
// must be loaded before the commands are built, because their flag defaults
// come from it, so cobra sees this flag too late.
func configFlagPath() string {
	fs := pflag.NewFlagSet("bootstrap", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	path := fs.String("config", "", "")
	_ = fs.Parse(os.Args[1:])
	return *path
}
