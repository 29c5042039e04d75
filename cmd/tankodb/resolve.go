package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/varoOP/tankodb/internal/app"
	"github.com/varoOP/tankodb/internal/domain"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <title>",
	Short: "Resolve volume and chapter counts for a title",
	Long: `Resolve walks the cache tiers for the given title and prints the result
as JSON. Use --force-refresh to bypass every cache tier and query the
sources directly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, " ")
		externalID, _ := cmd.Flags().GetString("external-id")
		status, _ := cmd.Flags().GetString("status")
		forceRefresh, _ := cmd.Flags().GetBool("force-refresh")
		knownChapters, _ := cmd.Flags().GetInt("chapters")

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		rc, err := application.Resolver.Resolve(context.Background(), domain.ResolutionRequest{
			Title:         title,
			ExternalID:    externalID,
			Status:        domain.Status(status),
			ForceRefresh:  forceRefresh,
			KnownChapters: knownChapters,
		})
		if err != nil {
			return fmt.Errorf("resolve failed: %w", err)
		}

		out, err := json.MarshalIndent(rc, "", "   ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}

		fmt.Println(string(out))
		return nil
	},
}

func init() {
	resolveCmd.Flags().String("external-id", "", "provider-specific id for the title")
	resolveCmd.Flags().String("status", "unknown", "publication status hint: 'ongoing', 'completed' or 'unknown'")
	resolveCmd.Flags().Bool("force-refresh", false, "bypass all cache tiers and query the sources")
	resolveCmd.Flags().Int("chapters", 0, "chapter count already known, used for the estimation fallback")
	rootCmd.AddCommand(resolveCmd)
}
