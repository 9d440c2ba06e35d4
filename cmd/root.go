package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/inovacc/pagewright/internal/application"
	"github.com/inovacc/pagewright/internal/config"
)

// version is set at build time with -ldflags "-X github.com/inovacc/pagewright/cmd.version=...".
var version = "dev"

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "A content manager for a single-page site",
	Long: `Pagewright keeps the content of a single-page marketing site in a
path-addressed store, serves an admin panel to edit it, builds the static
site from a template and triggers the hosting side to redeploy.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error

		cfg, err = config.Load(config.Options{
			Path:  configPath,
			Flags: configFlags(cmd),
		})
		if err != nil {
			return err
		}

		logger = newLogger(cfg.LogLevel)
		slog.SetDefault(logger)

		if cfg.File != "" {
			logger.Debug("config loaded", "file", cfg.File)
		}

		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCmd returns the root command for introspection purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./"+config.FileName+" or the data directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// flagKeys maps config keys to the flag names that override them.
var flagKeys = map[string]string{
	"log_level":        "log-level",
	"server.host":      "host",
	"server.port":      "port",
	"site.output_dir":  "output",
	"site.source_dir":  "source",
	"site.template":    "template",
	"publish.strategy": "strategy",
}

// configFlags collects the flags of cmd that override config keys.
func configFlags(cmd *cobra.Command) map[string]*pflag.Flag {
	flags := map[string]*pflag.Flag{}

	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			flags[key] = f
		}
	}

	return flags
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level

	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func printf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stdout, format, args...)
}
