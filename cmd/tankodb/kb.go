package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/tankodb/internal/app"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Administer the knowledge base",
}

var kbImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Merge a curated YAML mapping into the knowledge base",
	Long: `Import merges curated entries into the knowledge base document. The file
is a mapping of title to entry:

  attack on titan:
    title: Attack on Titan
    chapters: 139
    volumes: 34
    aliases:
      - shingeki no kyojin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		n, err := application.KnowledgeBase.ImportYAML(args[0])
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %d entries from %s\n", n, args[0])
		return nil
	},
}

func init() {
	kbCmd.AddCommand(kbImportCmd)
	rootCmd.AddCommand(kbCmd)
}
