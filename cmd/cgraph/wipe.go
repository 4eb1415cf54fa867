package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codegraph/codegraph-go/internal/graph"
)

var wipeForce bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete the entire graph and local state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !wipeForce {
			return fmt.Errorf("wipe deletes everything in database %q; re-run with --force to confirm", cfg.Neo4j.Database)
		}

		ctx := cmd.Context()
		backend, err := graph.NewNeo4jBackend(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database, nil)
		if err != nil {
			return err
		}
		defer backend.Close(context.Background())

		if err := backend.Wipe(ctx); err != nil {
			return err
		}

		statePath := cfg.Ingestion.StatePath
		if !filepath.IsAbs(statePath) {
			if abs, aerr := filepath.Abs(statePath); aerr == nil {
				statePath = abs
			}
		}
		if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
			logger.WithError(err).Warn("could not remove local state file")
		}

		logger.Info("graph and local state wiped")
		return nil
	},
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeForce, "force", false, "confirm deletion")
}
