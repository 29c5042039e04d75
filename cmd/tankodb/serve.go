package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/varoOP/tankodb/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP resolution API",
	Long: `Serve exposes the resolver over HTTP for the import workflow:

  POST   /api/resolve          resolve counts for a title
  GET    /api/cache            list cached entries with per-source stats
  DELETE /api/cache[?title=]   clear all entries, or one by title
  POST   /api/cache/refresh    force-refresh by ?title= or ?source=
  GET    /metrics              prometheus metrics
  GET    /healthz              liveness check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			viper.Set("listen_addr", addr)
		}

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		if err := application.Serve(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default :7337)")
	rootCmd.AddCommand(serveCmd)
}
