package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/seedling/internal/services"
)

// maxDocumentSize bounds the page check reads.
const maxDocumentSize = 10 << 20

var checkCmd = &cobra.Command{
	Use:   "check <url|file>",
	Short: "Boot a rendered page and verify hydration",
	Long: `Run the client boot against a rendered page: read the embedded payload,
plant the seeds into the module's content tree and compare the result with
the markup the server sent, then render the content as a plain client.

Examples:
  seedling check http://localhost:8080/docs
  seedling render /docs -o docs.html && seedling check docs.html`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var checkTimeout time.Duration

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "Timeout for fetching the page")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	document, err := readDocument(cmd, args[0])
	if err != nil {
		return err
	}

	svc, err := services.NewRenderService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	booter, err := svc.Booter()
	if err != nil {
		return err
	}
	res, err := booter.Boot(commandContext(cmd), document)
	if err != nil {
		return fmt.Errorf("boot failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "booted: %t\n", res.Booted)
	if !res.Booted {
		return nil
	}
	fmt.Fprintf(out, "hydrated: %t\n", res.Hydrated)
	fmt.Fprintf(out, "seeds: %d\n", len(res.Seeds))
	for _, seed := range res.Seeds {
		fmt.Fprintf(out, "  %s\n", seed.Key)
	}
	fmt.Fprintf(out, "language: %s\n", res.Options.PreferredLanguage)
	return nil
}

func readDocument(cmd *cobra.Command, target string) (string, error) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		raw, err := os.ReadFile(target)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", target, err)
		}
		return string(raw), nil
	}

	req, err := http.NewRequestWithContext(commandContext(cmd), http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL %s: %w", target, err)
	}
	client := &http.Client{Timeout: checkTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s answered %d\n", target, resp.StatusCode)
	}
	return string(raw), nil
}
