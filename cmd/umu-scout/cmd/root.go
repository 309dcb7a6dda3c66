package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/umu-scout/internal/config"
	"github.com/oshokin/umu-scout/internal/logger"
	"github.com/oshokin/umu-scout/internal/service/packager"
	"github.com/oshokin/umu-scout/internal/version"
)

var (
	// configPath to the optional configuration YAML file.
	configPath string
	// outputDir overrides the configured output directory.
	outputDir string
	// logLevel is the minimum level written to stderr.
	logLevel string
	// noChecksum disables the checksum sidecar.
	noChecksum bool

	// rootCmd represents the base command that rebuilds the package when it is stale.
	rootCmd = &cobra.Command{
		Use:   "umu-scout [update|manifest-path]",
		Short: "Repackage the Steam Linux Runtime and scout runtime as umu-scout.",
		Long: `Fetches the current versions of app1070560 and steam-runtime and compares them
with a previously published version manifest.

Without an argument the package is always rebuilt. With "update" the manifest is
read from the latest GitHub release and a failed lookup falls back to a rebuild.
With a path the manifest is read from that file and a failed read is fatal.

When anything changed the archives are downloaded, merged and published as
umu-scout.tar.xz with a SHA-512 sidecar and umu-scout.version.json. The build
tag is printed on stdout; all diagnostics go to stderr.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options, err := newOptions(args)
			if err != nil {
				return err
			}

			return packager.Run(ctx, options)
		},
	}

	// statusCmd reports staleness without building anything.
	statusCmd = &cobra.Command{
		Use:   "status [update|manifest-path]",
		Short: "Compare published and upstream versions without building.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options, err := newOptions(args)
			if err != nil {
				return err
			}

			return packager.Status(ctx, options)
		},
	}
)

// configCmd writes the effective configuration so it can be edited and passed back with --config.
var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Write the effective configuration as YAML.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFilename
		if len(args) > 0 {
			path = args[0]
		}

		options, err := newOptions(nil)
		if err != nil {
			return err
		}

		if err = config.Save(path, options.Config); err != nil {
			return err
		}

		logger.InfoKV(cmd.Context(), "Configuration written", "path", path)

		return nil
	},
}

// errUnknownLogLevel is returned for an unsupported --log-level value.
var errUnknownLogLevel = errors.New("unknown log level")

// Execute runs the umu-scout CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(statusCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(context.Background(), err.Error())
		os.Exit(1)
	}
}

// newOptions applies the global flags and turns the positional argument into packager options.
func newOptions(args []string) (*packager.Options, error) {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return nil, fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
	}

	logger.SetLevel(level)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if outputDir != "" {
		cfg.OutputDir = outputDir
	}

	if noChecksum {
		cfg.Checksum = false
	}

	prior, manifestPath := packager.ParsePrior(args)

	return &packager.Options{
		Config:       cfg,
		Prior:        prior,
		ManifestPath: manifestPath,
		Stdout:       os.Stdout,
	}, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to an optional configuration file")
	flags.StringVarP(&outputDir, "output", "o", "", "output directory (default \""+config.DefaultOutputDir+"\")")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&noChecksum, "no-checksum", false, "do not write the checksum sidecar")
}
