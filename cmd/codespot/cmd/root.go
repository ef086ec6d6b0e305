package cmd

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/codespot/internal/config"
	"github.com/MeKo-Tech/codespot/internal/logging"
	"github.com/MeKo-Tech/codespot/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	// Configuration file path.
	cfgFile string
	// Dotenv files loaded before the configuration.
	envFiles []string

	configLoader *config.Loader
	globalConfig *config.Config
	logger       = zap.NewNop()
)

// flagKeys maps flag names to configuration keys. A command binds the
// entries for the flags it defines.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-file":     "log.file",
	"video-root":   "paths.video_root",
	"output":       "paths.output",
	"pattern":      "code.regex",
	"orientation":  "orientation.mode",
	"eps":          "cluster.eps",
	"min-score":    "detection.min_score",
	"workers":      "pipeline.max_workers",
	"detector-url": "detection.url",
	"recognizer":   "recognition.backend",
	"ingress":      "ingress.kind",
	"ingress-url":  "ingress.url",
	"index-url":    "index.url",
	"metrics-addr": "server.addr",
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "codespot",
	Short: "Read truck and container codes from gate camera frames",
	Long: `codespot listens for gate alarm events, finds the matching archived camera
frame, reads the truck or container codes painted on it and records them.

For every event it:
- copies the frame into the output directory
- detects text regions, merges fragments of one code and decides its orientation
- reads each code and keeps those matching the configured pattern
- writes <output>/<YYYYMMDDTHHMMSS>.json
- registers the most confident code on the event document in the search index

Examples:
  codespot listen
  codespot image frame.jpg --pattern '[A-Z]{4}\d{7}'
  codespot replay event.json
  codespot replay --dead-letters`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd.Flags())
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is codespot.yaml in ., $HOME, $XDG_CONFIG_HOME/codespot, /etc/codespot)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"},
		"dotenv files loaded into the environment before the configuration")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this rotating file")
}

// initConfig loads dotenv files, the configuration and the logger for the
// command about to run.
func initConfig(flags *pflag.FlagSet) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	configLoader = config.NewLoader()
	keys := make(map[string]string)
	for flag, key := range flagKeys {
		if flags.Lookup(flag) != nil {
			keys[flag] = key
		}
	}
	if err := configLoader.BindFlags(flags, keys); err != nil {
		return err
	}

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err = logging.New(globalConfig.ToLoggingConfig())
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("version", version.Version))
	if used := configLoader.GetConfigFileUsed(); used != "" {
		logger.Debug("configuration loaded", zap.String("file", used))
	}
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return globalConfig
}
