package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/seedling/internal/services"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Initialize a new seedling project",
	Long: `Initialize a new seedling project: a .seedling.yml configuration file,
a sample page module under ssr/ and a placeholder client bundle under www/.
If no directory is provided, initializes in the current directory.

Examples:
  seedling init                                  # Initialize in current directory
  seedling init site                             # Initialize in new directory 'site'
  seedling init --minimal                        # Page module without the sample partial
  seedling init --data-source https://api.local  # Point the sample at a data source`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initMinimal    bool
	initForce      bool
	initDataSource string
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "Minimal setup without the sample partial")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")
	initCmd.Flags().StringVar(&initDataSource, "data-source", "", "Data source base URL")
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) > 0 {
		projectDir = args[0]
	}

	written, err := services.NewInitService().InitProject(services.InitOptions{
		ProjectDir:    projectDir,
		DataSourceURL: initDataSource,
		Minimal:       initMinimal,
		Force:         initForce,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, path := range written {
		if rel, err := filepath.Rel(projectDir, path); err == nil {
			path = rel
		}
		fmt.Fprintf(out, "  created %s\n", path)
	}
	fmt.Fprintln(out, "Project initialized. Run 'seedling serve' to start the server.")
	return nil
}
