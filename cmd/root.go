// Package cmd provides the command-line interface for seedling.
//
// Configuration System:
//
//	The CLI resolves configuration from several sources:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. SEEDLING_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (SEEDLING_SERVER_PORT, etc.)
//	4. Configuration files (.seedling.yml) - lowest priority
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/seedling/internal/config"
	"github.com/conneroisu/seedling/internal/logging"
)

// ConfigFileEnv names the environment variable that points at a config file.
const ConfigFileEnv = "SEEDLING_CONFIG_FILE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "seedling",
	Short: "Server-side rendering with seeded hydration",
	Long: `Seedling renders page modules on the server, embeds the data the render
harvested as seeds, and lets the client boot replay them without refetching.

Quick Start:
  seedling init                   Scaffold a project with a sample module
  seedling serve                  Start the rendering server
  seedling render /               Render one page to stdout
  seedling check URL              Boot a rendered page and verify hydration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .seedling.yml, can also use "+ConfigFileEnv+" env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig points viper at the configuration file and enables
// SEEDLING_ environment overrides.
//
// The file is, in order: the --config flag, SEEDLING_CONFIG_FILE, then
// .seedling.yml in the working directory. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(ConfigFileEnv); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".seedling")
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the configuration and builds the logger every
// command shares.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    out,
		Component: "seedling",
	}), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
