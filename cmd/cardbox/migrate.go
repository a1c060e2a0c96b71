package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/cardbox/cardbox/internal/config"
	"github.com/cardbox/cardbox/internal/db"
	"github.com/cardbox/cardbox/internal/storage"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Prepare the storage schema",
		Long: "For the embedded local store, applies schema migrations directly. " +
			"For the postgres provider, prints the bootstrap DDL to apply " +
			"out-of-band (the adapter runs without DDL privileges).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			switch cfg.Storage.Provider {
			case storage.ProviderPostgres:
				fmt.Println(storage.BootstrapDDL)
				return nil
			case storage.ProviderLocal, "":
				conn, err := db.Open("sqlite3", cfg.Storage.Local.Path)
				if err != nil {
					return err
				}
				defer func() { _ = conn.Close() }()

				if err := db.Migrate(conn, cfg.Storage.Local.Version); err != nil {
					return err
				}
				log.Println("migrations complete")
				return nil
			default:
				return fmt.Errorf("no migrations for storage provider %q", cfg.Storage.Provider)
			}
		},
	}
}
