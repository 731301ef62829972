package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when enabled, the Kafka signal consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		defer cleanup()

		return app.Run(cmd.Context())
	},
}
