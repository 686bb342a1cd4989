// Package main provides the aegis CLI: the offline-first field
// reporting engine and its local shell server.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/aegis/internal/store"
	"github.com/mesh-intelligence/aegis/pkg/logger"
	"github.com/mesh-intelligence/aegis/pkg/types"
)

var (
	// configDir is set by the --config-dir flag.
	configDir string

	// cfg is the loaded configuration, resolved on startup.
	cfg types.Config

	// db is the global record store, opened on startup.
	db *store.Store

	// log is the shared structured logger.
	log *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Aegis is an offline-first incident reporting engine",
	Long: `Aegis records field incident reports into a durable local store,
keeps the application shell available without a network, and reconciles
local reports with the remote authority when connectivity returns.`,
	SilenceUsage:       true,
	PersistentPreRunE:  initEngine,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return closeEngine() },
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default: .aegis)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

// initEngine loads config and opens the record store.
func initEngine(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	loaded, err := loadConfig(resolveConfigDir())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = loaded
	log = logger.New(cfg.LogLevel)

	db = store.New()
	if err := db.Open(cfg); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	return nil
}

// closeEngine releases the record store.
func closeEngine() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the local store and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Store and config are initialized by PersistentPreRunE.
		fmt.Printf("Initialized aegis store in %s\n", cfg.DataDir)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("aegis v0.1.0")
	},
}
