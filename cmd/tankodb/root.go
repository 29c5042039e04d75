package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tankodb",
	Short: "A volume/chapter count resolution cache for manga collections",
	Long: `TankoDB resolves volume and chapter counts for manga titles through a
tiered cache: an in-memory session cache, a persistent sqlite cache with
staleness-based refresh, a self-growing knowledge base of verified titles,
and concurrent lookups against AniList, MangaDex, MyAnimeList, MangaFire
and MangaPark when nothing cheaper answers.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tankodb.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().String("db-dir", ".", "directory holding the cache database")
	rootCmd.PersistentFlags().String("knowledge-base", "knowledge_base.json", "path of the knowledge base document")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("db_dir", rootCmd.PersistentFlags().Lookup("db-dir"))
	viper.BindPFlag("knowledge_base_path", rootCmd.PersistentFlags().Lookup("knowledge-base"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory and current directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tankodb")
		viper.SetConfigName("config")
	}

	// Environment variables
	viper.SetEnvPrefix("TANKODB")
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
