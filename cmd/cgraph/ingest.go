package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codegraph/codegraph-go/internal/configfiles"
	"github.com/codegraph/codegraph-go/internal/graph"
	"github.com/codegraph/codegraph-go/internal/ingestion"
	"github.com/codegraph/codegraph-go/internal/models"
	"github.com/codegraph/codegraph-go/internal/parser"
	"github.com/codegraph/codegraph-go/internal/vcs"
	"github.com/codegraph/codegraph-go/internal/walker"
)

var (
	ingestClean      bool
	ingestWorkers    int
	ingestBatchBytes int64
	ingestInclude    []string
	ingestExclude    []string
	ingestSince      string
	ingestNoGit      bool
	ingestNoConfig   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index a source tree into the graph store",
	Long: `Walks the tree, re-parses what changed since the last run, resolves
cross-file references, and writes the delta to the graph store. The first
run indexes everything; later runs are incremental.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestClean, "clean", false, "wipe the graph and local state before indexing")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "parse worker count (default: from config)")
	ingestCmd.Flags().Int64Var(&ingestBatchBytes, "batch-bytes", 0, "max bytes per parse batch (default: from config)")
	ingestCmd.Flags().StringSliceVar(&ingestInclude, "include", nil, "only index these folders (repo-relative)")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "skip these folders (repo-relative, wins over include)")
	ingestCmd.Flags().StringVar(&ingestSince, "git-since", "", "git history depth (git date syntax, e.g. '90 days ago'); does not affect source diffing, which is always hash-based")
	ingestCmd.Flags().BoolVar(&ingestNoGit, "no-git", false, "skip git history enrichment")
	ingestCmd.Flags().BoolVar(&ingestNoConfig, "no-config", false, "skip configuration file indexing")
}

func runIngest(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := graph.NewNeo4jBackend(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database, nil)
	if err != nil {
		return err
	}
	defer backend.Close(context.Background())

	statePath := cfg.Ingestion.StatePath
	if !filepath.IsAbs(statePath) {
		statePath = filepath.Join(absRoot, statePath)
	}
	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return err
	}
	state, err := ingestion.OpenState(statePath)
	if err != nil {
		return err
	}
	defer state.Close()

	registry := parser.DefaultRegistry()
	writer := graph.NewWriter(backend, graph.DefaultBatchConfig(), nil)

	var enrichers []ingestion.Enricher
	if !ingestNoGit {
		enrichers = append(enrichers, &vcs.History{
			Since: ingestSince,
			PathFilter: func(path string) bool {
				_, ok := registry.Lookup(filepath.Ext(path))
				return ok
			},
			Log: logger,
		})
	}
	if !ingestNoConfig {
		enrichers = append(enrichers, configfiles.NewScanner())
	}

	orch := ingestion.NewOrchestrator(registry, backend, writer, state, logger, enrichers...)

	workers := cfg.Ingestion.Workers
	if ingestWorkers > 0 {
		workers = ingestWorkers
	}
	batchBytes := cfg.Ingestion.MaxBatchBytes
	if ingestBatchBytes > 0 {
		batchBytes = ingestBatchBytes
	}

	report, runErr := orch.Run(ctx, ingestion.Options{
		Root:          absRoot,
		Workers:       workers,
		MaxBatchBytes: batchBytes,
		Filter:        walker.FolderFilter{Include: ingestInclude, Exclude: ingestExclude},
		Clean:         ingestClean,
	})
	printReport(report)
	if runErr != nil {
		return runErr
	}
	if !report.Succeeded() {
		return fmt.Errorf("ingestion finished with problems: %d failures, cancelled=%v",
			len(report.Failures), report.Cancelled)
	}
	return nil
}

func printReport(report *models.IngestionReport) {
	logger.WithFields(logrus.Fields{
		"run_id":        report.RunID,
		"generation":    report.Generation,
		"files_parsed":  report.FilesParsed,
		"files_reused":  report.FilesReused,
		"files_failed":  report.FilesFailed,
		"files_skipped": report.FilesSkipped,
		"entities":      report.EntitiesWritten,
		"relationships": report.RelationshipsWritten,
		"deleted":       report.EntitiesDeleted,
		"unresolved":    report.UnresolvedReferences,
		"ambiguous":     report.ResolutionAmbiguities,
		"duration":      report.Duration,
	}).Info("run report")
	for _, f := range report.Failures {
		logger.WithFields(logrus.Fields{
			"path": f.Path, "stage": f.Stage,
		}).Error(f.Err)
	}
}
