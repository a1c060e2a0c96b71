package main

import (
	"context"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cardbox/cardbox/internal/api"
	"github.com/cardbox/cardbox/internal/build"
	"github.com/cardbox/cardbox/internal/config"
	"github.com/cardbox/cardbox/internal/logbuf"
	"github.com/cardbox/cardbox/internal/storage"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logs := logbuf.New(logbuf.Options{
				MaxEntries: cfg.Log.MaxEntries,
				MirrorPath: cfg.Log.MirrorPath,
			})
			defer func() { _ = logs.Close() }()

			factory := storage.NewFactory(logs)
			store, err := factory.Instance(&cfg.Storage)
			if err != nil {
				return err
			}
			defer factory.Reset()

			// A failed initialize is not fatal: every operation retries the
			// connection transparently, and clients receive failure
			// envelopes until the backend comes up.
			if res := store.Initialize(context.Background()); !res.Success {
				log.Printf("storage initialize: %s", res.Error)
			}

			router := api.NewRouter(api.Deps{Store: store, Log: logs})

			log.Printf("cardbox %s listening on %s", build.Version, cfg.HTTP.Addr)
			return http.ListenAndServe(cfg.HTTP.Addr, router)
		},
	}
}
