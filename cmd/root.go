/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/citebot/config"
	"github.com/tieubaoca/citebot/observability"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "citebot",
	Short: "Question answering over your documents with verified citations",
	Long: `citebot answers questions from an indexed document corpus in three steps:
it retrieves relevant chunks, drafts an answer citing them as [C1], [C2], ...
and verifies the draft against the retrieved evidence.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer zap.L().Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle (initConfig refers to rootCmd).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig()
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides the config file")
}

// initConfig reads the config file and environment and installs the global logger.
func initConfig() error {
	path := cfgFile
	if _, err := os.Stat(path); err != nil && !rootCmd.PersistentFlags().Changed("config") {
		path = ""
	}
	loaded, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	cfg = loaded

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	if path != "" {
		zap.L().Debug("using config file", zap.String("path", path))
	}
	return nil
}
