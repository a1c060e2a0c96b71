package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardbox/cardbox/internal/build"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "cardbox",
		Short:   "A personal card/note-keeping service",
		Long:    "Cardbox — cards and notes over pluggable storage backends.",
		Version: fmt.Sprintf("%s (%s, %s)", build.Version, build.Commit, build.Branch),
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
