package main

import (
	"fmt"
	"os"

	"crisim/internal/config"
	"crisim/internal/logging"
	"crisim/pkg/crisim"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crisimctl",
		Short: "Fixed-point spiking network simulator",
		Long: `crisimctl builds spiking networks from YAML, TOML or JSON payloads and
steps them with the integer semantics of the simpleSim target.

Runs can be persisted, listed, checked against golden traces and exported
as Arrow IPC streams.`,
		SilenceUsage: true,
	}
	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newValidateCmd(),
		newVerifyCmd(),
		newBatchCmd(),
		newTracesCmd(),
		newExportCmd(),
	)
	return rootCmd
}

func addGlobalFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("settings", "", "Settings file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: error, warn, info, debug or trace")
	rootCmd.PersistentFlags().String("store", "", "Trace store: memory or sqlite")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path")
}

// loadSettings reads the settings file and applies flag overrides on top.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path, _ := cmd.Flags().GetString("settings")
	settings, err := config.ReadSettings(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		settings.Logging.Level = level
	}
	if kind, _ := cmd.Flags().GetString("store"); kind != "" {
		settings.Store.Kind = kind
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		settings.Store.Path = db
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func newClient(cmd *cobra.Command) (*crisim.Client, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	cacheSize, err := settings.CacheSize()
	if err != nil {
		return nil, err
	}
	return crisim.New(crisim.Options{
		StoreKind: settings.Store.Kind,
		DBPath:    settings.Store.Path,
		CacheSize: cacheSize,
		Logger:    logging.NewLogger(settings.Logging.Level, cmd.ErrOrStderr()),
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				writeJSON(cmd, map[string]string{"version": version})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "crisimctl version %s\n", version)
		},
	}
}
