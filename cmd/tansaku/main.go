package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tansaku-dev/tansaku/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "tansaku",
	Short: "tansaku - distributed black-box optimization studies",
	Long: `tansaku coordinates black-box optimization studies over shared storage.
Workers ask for trials, evaluate them, and tell the results back; the
storage backend guarantees exactly-once trial allocation and finalization.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	storagePath  string
	outputFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage", "", "SQLite database path (default $TANSAKU_STORAGE or ~/.tansaku/tansaku.db)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format: table, json, or yaml")

	rootCmd.AddCommand(createStudyCmd)
	rootCmd.AddCommand(deleteStudyCmd)
	rootCmd.AddCommand(studiesCmd)
	rootCmd.AddCommand(setUserAttrCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(tellCmd)
	rootCmd.AddCommand(trialsCmd)
	rootCmd.AddCommand(bestTrialCmd)
	rootCmd.AddCommand(bestTrialsCmd)
}

// openBackend resolves the storage flag and opens the backend. ":memory:"
// gives a process-local store, useful for smoke tests.
func openBackend() (store.Backend, error) {
	path := storagePath
	if path == "" {
		path = os.Getenv("TANSAKU_STORAGE")
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".tansaku", "tansaku.db")
	}
	if path == ":memory:" {
		return store.NewMemory(), nil
	}
	return store.Open(path)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
