package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	apperrors "github.com/conneroisu/seedling/internal/errors"
	"github.com/conneroisu/seedling/internal/server"
	"github.com/conneroisu/seedling/internal/services"
)

var renderCmd = &cobra.Command{
	Use:     "render [path]",
	Aliases: []string{"r"},
	Short:   "Render one page",
	Long: `Render one page through the module pipeline and print the document.

When the render fails the failure document is printed instead and the
command exits with an error carrying the page status.

Examples:
  seedling render                     # Render /
  seedling render /docs --lang de     # Render /docs for a German reader
  seedling render /docs -o docs.html  # Write the document to a file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var (
	renderLanguage string
	renderOutput   string
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderLanguage, "lang", server.DefaultLanguage, "Preferred language of the reader")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write the document to a file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	pagePath := "/"
	if len(args) > 0 {
		pagePath = args[0]
	}

	svc, err := services.NewRenderService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	document, renderErr := svc.Render(commandContext(cmd), pagePath, renderLanguage)
	if renderErr != nil {
		var pageErr *apperrors.PageError
		if !errors.As(renderErr, &pageErr) || pageErr.HTML == "" {
			return renderErr
		}
		document = pageErr.HTML
	}

	if err := writeDocument(cmd.OutOrStdout(), renderOutput, document); err != nil {
		return err
	}
	if renderErr != nil {
		return fmt.Errorf("render of %s failed with status %d: %w", pagePath, apperrors.StatusOf(renderErr), renderErr)
	}
	return nil
}

func writeDocument(stdout io.Writer, path, document string) error {
	if path == "" {
		_, err := io.WriteString(stdout, document)
		return err
	}
	if err := os.WriteFile(path, []byte(document), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
