package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fitsight-io/fitsight/cmd"
	"github.com/fitsight-io/fitsight/pkg/configuration"
	"github.com/fitsight-io/fitsight/pkg/logging"
	"github.com/fitsight-io/fitsight/pkg/server"
)

// applyEnvironmentOverrides folds FITSIGHT_* environment variables into the
// configuration before flag overrides are applied.
func applyEnvironmentOverrides(config *configuration.Configuration) {
	if value := os.Getenv("FITSIGHT_DB"); value != "" {
		config.Database.Path = value
	}
	if value := os.Getenv("FITSIGHT_CACHE_DIR"); value != "" {
		config.Cache.Directory = value
	}
	if value := os.Getenv("FITSIGHT_PORT"); value != "" {
		if port, err := strconv.ParseUint(value, 10, 16); err == nil {
			config.Server.Port = uint16(port)
		}
	}
}

func serveMain(command *cobra.Command, arguments []string) error {
	// Load any .env file so that environment overrides behave the same in
	// development and deployment.
	godotenv.Load()

	// Load the configuration, treating a missing file as defaults unless the
	// path was explicitly specified.
	var config *configuration.Configuration
	if serveConfiguration.configurationPath != "" {
		loaded, err := configuration.Load(serveConfiguration.configurationPath)
		if err != nil {
			return errors.Wrap(err, "unable to load configuration")
		}
		config = loaded
	} else {
		loaded, err := configuration.Load("fitsight.toml")
		if err != nil {
			if !os.IsNotExist(err) {
				return errors.Wrap(err, "unable to load configuration")
			}
			loaded = configuration.Default()
		}
		config = loaded
	}

	// Apply environment and flag overrides, flags winning.
	applyEnvironmentOverrides(config)
	config.Apply(&configuration.Overrides{
		DatabasePath:     serveConfiguration.databasePath,
		ImageDirectories: serveConfiguration.imageDirectories,
		Port:             serveConfiguration.port,
		Host:             serveConfiguration.host,
		CacheDirectory:   serveConfiguration.cacheDirectory,
	})

	// Validate before touching anything.
	if err := config.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	// Assemble the application with a signal-bounded run context.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.RootLogger.Sublogger("fitsight")
	application, err := server.NewApplication(ctx, config, logger)
	if err != nil {
		return errors.Wrap(err, "unable to initialize application")
	}
	defer application.Close()

	// Run the server until a shutdown signal arrives.
	return server.NewServer(application).Run(ctx)
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API over an acquisition catalog and image roots",
	Run:   cmd.Mainify(serveMain),
}

var serveConfiguration struct {
	help              bool
	configurationPath string
	databasePath      string
	imageDirectories  []string
	port              uint16
	host              string
	cacheDirectory    string
}

func init() {
	flags := serveCommand.Flags()
	flags.BoolVarP(&serveConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVarP(&serveConfiguration.configurationPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&serveConfiguration.databasePath, "db", "", "Acquisition catalog path (overrides configuration)")
	flags.StringSliceVar(&serveConfiguration.imageDirectories, "image-dir", nil, "Image root directory (repeatable, overrides configuration)")
	flags.Uint16Var(&serveConfiguration.port, "port", 0, "Port to bind (overrides configuration)")
	flags.StringVar(&serveConfiguration.host, "host", "", "Host to bind (overrides configuration)")
	flags.StringVar(&serveConfiguration.cacheDirectory, "cache-dir", "", "Artifact cache directory (overrides configuration)")
}
