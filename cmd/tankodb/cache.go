package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/varoOP/tankodb/internal/app"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Administer the persistent count cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [title]",
	Short: "Clear the whole cache, or one entry by title",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		ctx := context.Background()

		if len(args) > 0 {
			title := strings.Join(args, " ")
			if err := application.Resolver.Clear(ctx, title); err != nil {
				return fmt.Errorf("failed to clear %q: %w", title, err)
			}
			fmt.Printf("Cleared cache entry for %q\n", title)
			return nil
		}

		n, err := application.Resolver.ClearAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Printf("Cleared %d cache entries\n", n)
		return nil
	},
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh [title]",
	Short: "Force-refresh one title, or every entry from a source",
	Long: `Refresh re-resolves entries against the live sources, bypassing every
cache tier. With a title argument a single entry is refreshed; with
--source every entry previously resolved by that source is.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		if len(args) == 0 && source == "" {
			return fmt.Errorf("a title argument or --source is required")
		}

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		ctx := context.Background()

		if len(args) > 0 {
			title := strings.Join(args, " ")
			rc, err := application.Resolver.Refresh(ctx, title)
			if err != nil {
				return fmt.Errorf("failed to refresh %q: %w", title, err)
			}
			fmt.Printf("Refreshed %q: %d chapters, %d volumes (source: %s)\n",
				title, rc.ChapterCount, rc.VolumeCount, rc.Source)
			return nil
		}

		n, err := application.Resolver.RefreshBySource(ctx, source)
		if err != nil {
			return fmt.Errorf("failed to refresh entries from %s: %w", source, err)
		}
		fmt.Printf("Refreshed %d entries from %s\n", n, source)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		entries, err := application.Resolver.List(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list cache entries: %w", err)
		}

		bySource := map[string]int{}
		for _, e := range entries {
			bySource[e.Source]++
		}

		fmt.Printf("Cached entries: %d\n", len(entries))
		fmt.Printf("Knowledge base entries: %d\n", application.KnowledgeBase.Len())
		for source, n := range bySource {
			fmt.Printf("  %s: %d\n", source, n)
		}
		return nil
	},
}

func init() {
	cacheRefreshCmd.Flags().String("source", "", "refresh every entry resolved by this source")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheRefreshCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
