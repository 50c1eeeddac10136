package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/seedling/internal/services"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the rendering server",
	Long: `Start the rendering server.

Paths with a file extension are served from the assets directory; every
other path is rendered by the page module. In development mode the module
directory is watched and edits take effect on the next request.

Examples:
  seedling serve                       # Serve on localhost:8080
  seedling serve --port 3000           # Serve on another port
  seedling serve --env production      # Hide stack traces in failure documents`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("env", "development", "Environment (development, production)")
	serveCmd.Flags().StringP("module", "m", "ssr/page.html", "Page module to render")
	serveCmd.Flags().Bool("parallel", false, "Render the shell and the content concurrently")
	serveCmd.Flags().Bool("no-watch", false, "Don't reload the module when it changes")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.environment", serveCmd.Flags().Lookup("env"))
	_ = viper.BindPFlag("render.module", serveCmd.Flags().Lookup("module"))
	_ = viper.BindPFlag("render.parallel", serveCmd.Flags().Lookup("parallel"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.Development.Watch = false
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := services.NewServeService(cfg, logger)
	info := svc.GetServerInfo()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s (%s mode) at %s\n", info.Module, info.Mode, info.ServerURL)
	fmt.Fprintf(cmd.OutOrStdout(), "Metrics: %s\n", info.MetricsURL)

	if err := svc.Serve(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info(context.Background(), "server stopped")
	return nil
}
