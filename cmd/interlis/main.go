// Package main provides the interlis command: OGR mapping generation for
// INTERLIS models and the model service.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sourcepole/qgis-interlis-plugin/internal/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

// Loaded by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "interlis",
	Short: "INTERLIS model to OGR schema mapping",
	Long: `interlis maps INTERLIS models and other OGR datasets to destination
schemas.

It generates OGR mapping documents and VRT files, extracts enumeration
tables, writes empty INTERLIS transfers and drives the ili2c, ili2pg and
ili2gpkg tools. The serve command exposes the same operations over HTTP for a
repository of IlisMeta (.imd) model files.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "interlis %s\n", version)
		_, _ = fmt.Fprintf(out, "  Commit:     %s\n", commit)
		_, _ = fmt.Fprintf(out, "  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, text)")
	flags.String("java", "java", "java executable")
	flags.String("ili2c-jar", "", "path to ili2c.jar")
	flags.String("ili2pg-jar", "", "path to ili2pg.jar")
	flags.String("ili2gpkg-jar", "", "path to ili2gpkg.jar")

	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("tools.java", flags.Lookup("java"))
	_ = viper.BindPFlag("tools.ili2c_jar", flags.Lookup("ili2c-jar"))
	_ = viper.BindPFlag("tools.ili2pg_jar", flags.Lookup("ili2pg-jar"))
	_ = viper.BindPFlag("tools.ili2gpkg_jar", flags.Lookup("ili2gpkg-jar"))

	rootCmd.AddCommand(versionCmd, serveCmd)
	rootCmd.AddCommand(configCmd, vrtCmd, enumsCmd, transferCmd, inspectCmd)
	rootCmd.AddCommand(ili2cCmd, newIli2dbCmd(ili2pgTool), newIli2dbCmd(ili2gpkgTool))
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// loadConfig loads the configuration and sets up logging. The service logs
// to stdout; other commands write documents there and log to stderr.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var w io.Writer = os.Stderr
	if cmd == serveCmd {
		w = os.Stdout
	}
	logger = setupLogger(cfg.Logging, w)
	slog.SetDefault(logger)
	return nil
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
