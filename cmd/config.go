package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/seedling/internal/config"
	"github.com/conneroisu/seedling/internal/logging"
	"github.com/conneroisu/seedling/internal/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage seedling configuration",
	Long: `Inspect seedling configuration.

Examples:
  seedling config show                  # Show the resolved configuration
  seedling config show --format json    # Show it as JSON
  seedling config validate              # Validate .seedling.yml
  seedling config validate --file prod.yml --strict`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a seedling configuration file.

This command checks for:
- Valid port ranges and hostnames
- Known environments and module load modes
- Render limits and the route base path
- Data source URL and timeout`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the configuration after loading the file, applying environment
overrides and defaults. Secrets are redacted.`,
	RunE: runConfigShow,
}

var (
	configFile   string
	configStrict bool
	configFormat = newFormatFlag("yaml", "yaml", "json")
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: "+services.ConfigFileName+")")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")

	configShowCmd.Flags().Var(configFormat, "format", "Output format (yaml, json)")
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	targetFile := configFile
	if targetFile == "" {
		if _, err := os.Stat(services.ConfigFileName); err != nil {
			return errors.New("no configuration file found. Use --file to specify a config file " +
				"or run 'seedling init' to create one")
		}
		targetFile = services.ConfigFileName
	}

	v := viper.New()
	v.SetConfigFile(targetFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating configuration file: %s\n", targetFile)

	validation := config.ValidateConfigWithDetails(cfg)
	fmt.Fprint(out, validation.String())

	if validation.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(validation.Errors))
	}
	if validation.HasWarnings() && configStrict {
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings", len(validation.Warnings))
	}

	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	redacted := *cfg
	redacted.DataSource.Token = logging.SanitizeForLog("token", cfg.DataSource.Token)

	var raw []byte
	switch configFormat.String() {
	case "json":
		raw, err = json.MarshalIndent(redacted, "", "  ")
	default:
		raw, err = yaml.Marshal(redacted)
	}
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := out.Write(raw); err != nil {
		return err
	}
	if len(raw) > 0 && raw[len(raw)-1] != '\n' {
		fmt.Fprintln(out)
	}
	return nil
}
