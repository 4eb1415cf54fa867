// Package ingestion drives the full pipeline for one run: discover,
// diff, parse, resolve, build, write, and persist the new baseline.
package ingestion

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	cgerr "github.com/codegraph/codegraph-go/internal/errors"
	"github.com/codegraph/codegraph-go/internal/graph"
	"github.com/codegraph/codegraph-go/internal/languages"
	"github.com/codegraph/codegraph-go/internal/models"
	"github.com/codegraph/codegraph-go/internal/parser"
	"github.com/codegraph/codegraph-go/internal/resolver"
	"github.com/codegraph/codegraph-go/internal/walker"
)

// Enricher contributes extra candidates from outside the source tree:
// version-control history, configuration files.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, root string) ([]models.CandidateEntity, []models.CandidateRelationship, error)
}

// Options configure one ingestion run.
type Options struct {
	Root          string
	Workers       int
	MaxBatchBytes int64
	Filter        walker.FolderFilter

	// Clean wipes the graph and the local state before indexing.
	Clean bool
}

// Orchestrator owns the run lifecycle. Parse work fans out across workers;
// resolution is single-threaded; writes go through the phase-barrier
// writer.
type Orchestrator struct {
	registry  *languages.Registry
	backend   graph.Backend
	writer    *graph.Writer
	state     *StateStore
	enrichers []Enricher
	log       *logrus.Logger
}

func NewOrchestrator(registry *languages.Registry, backend graph.Backend, writer *graph.Writer, state *StateStore, log *logrus.Logger, enrichers ...Enricher) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		registry:  registry,
		backend:   backend,
		writer:    writer,
		state:     state,
		enrichers: enrichers,
		log:       log,
	}
}

// Run executes one generation. Per-file and per-edge problems aggregate
// into the report; only configuration and store-level failures return an
// error.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*models.IngestionReport, error) {
	start := time.Now()
	report := &models.IngestionReport{
		RunID: uuid.New().String(),
		Root:  opts.Root,
	}
	runLog := o.log.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"root":   opts.Root,
	})

	if opts.Clean {
		runLog.Warn("clean requested: wiping graph and local state")
		if err := o.backend.Wipe(ctx); err != nil {
			return report, err
		}
		if err := o.state.Reset(); err != nil {
			return report, err
		}
	}

	if err := o.backend.EnsureConstraints(ctx); err != nil {
		return report, err
	}

	walkResult, err := walker.Walk(opts.Root, o.registry, opts.Filter)
	if err != nil {
		return report, err
	}
	report.FilesSeen = len(walkResult.Files) + walkResult.Skipped
	report.FilesSkipped = walkResult.Skipped

	previous, err := o.state.Snapshot()
	if err != nil {
		return report, err
	}
	prevGen, err := o.state.Generation()
	if err != nil {
		return report, err
	}
	generation := prevGen + 1
	report.Generation = generation

	plan, err := BuildPlan(walkResult.Files, previous)
	if err != nil {
		return report, err
	}
	report.FilesReused = len(plan.Unchanged) + len(plan.Renames)

	runLog.WithFields(logrus.Fields{
		"generation": generation,
		"parse":      len(plan.Parse),
		"unchanged":  len(plan.Unchanged),
		"removed":    len(plan.Removed),
		"renamed":    len(plan.Renames),
	}).Info("ingestion plan ready")

	results, cancelled := o.parseAll(ctx, plan.Parse, opts, runLog)
	report.Cancelled = cancelled

	var (
		entityCands []models.CandidateEntity
		relCands    []models.CandidateRelationship
		parsedFiles []string
		parsedSet   = map[string]*parser.ParseResult{}
	)
	for _, res := range results {
		if res.Err != nil {
			report.FilesFailed++
			report.Failures = append(report.Failures, models.FileFailure{
				Path: res.File.RelPath, Stage: "parse", Err: res.Err.Error(),
			})
			continue
		}
		report.FilesParsed++
		parsedFiles = append(parsedFiles, res.File.RelPath)
		parsedSet[res.File.RelPath] = res
		entityCands = append(entityCands, res.Entities...)
		relCands = append(relCands, res.Relationships...)
	}

	// Unchanged files contribute their cached extraction so cross-file
	// references resolve against the complete tree, not just the delta.
	for _, pf := range plan.Unchanged {
		ents, rels, cerr := o.state.Candidates(pf.File.RelPath)
		if cerr != nil {
			// Cache miss: treat as modified and re-parse inline.
			spec, ok := o.registry.Lookup(path.Ext(pf.File.RelPath))
			if !ok {
				continue
			}
			res := parser.ParseFile(pf.File, spec)
			if res.Err != nil {
				report.FilesFailed++
				report.Failures = append(report.Failures, models.FileFailure{
					Path: pf.File.RelPath, Stage: "parse", Err: res.Err.Error(),
				})
				continue
			}
			report.FilesParsed++
			parsedFiles = append(parsedFiles, pf.File.RelPath)
			parsedSet[pf.File.RelPath] = res
			ents, rels = res.Entities, res.Relationships
			plan.Parse = append(plan.Parse, pf)
		}
		entityCands = append(entityCands, ents...)
		relCands = append(relCands, rels...)
	}
	for old, renamed := range plan.Renames {
		if err := o.state.Rename(old, renamed); err != nil {
			return report, err
		}
		ents, rels, cerr := o.state.Candidates(renamed)
		if cerr != nil {
			runLog.WithField("path", renamed).Warn("renamed file has no cached candidates")
			continue
		}
		entityCands = append(entityCands, ents...)
		relCands = append(relCands, rels...)
	}

	for _, enricher := range o.enrichers {
		ents, rels, eerr := enricher.Enrich(ctx, opts.Root)
		if eerr != nil {
			runLog.WithError(eerr).WithField("enricher", enricher.Name()).
				Warn("enrichment failed, continuing without it")
			continue
		}
		entityCands = append(entityCands, ents...)
		relCands = append(relCands, rels...)
	}

	entities, table, resolverReport := resolver.Resolve(entityCands, generation)
	report.Resolver = resolverReport

	relationships, buildStats := resolver.Build(relCands, table)
	report.UnresolvedReferences = buildStats.Unresolved
	report.ResolutionAmbiguities = buildStats.Ambiguous

	// Entities from unchanged or renamed files already sit in the graph at
	// an older generation and are skipped. Everything else writes: re-parsed
	// files, and contributions from outside the walked tree (git history,
	// config files) that never enter the parse plan.
	carried := make(map[string]bool, len(plan.Unchanged)+2*len(plan.Renames))
	for _, pf := range plan.Unchanged {
		carried[pf.File.RelPath] = true
	}
	for old, renamed := range plan.Renames {
		carried[old] = true
		carried[renamed] = true
	}
	writeEntities := make([]*models.Entity, 0, len(entities))
	for _, e := range entities {
		if carried[e.DefiningFile] && parsedSet[e.DefiningFile] == nil {
			continue
		}
		writeEntities = append(writeEntities, e)
	}

	writePlan := graph.WritePlan{
		Generation:    generation,
		DeleteFiles:   plan.Removed,
		Renames:       plan.Renames,
		PruneFiles:    parsedFiles,
		Entities:      writeEntities,
		Relationships: relationships,
	}
	// A cancelled run still commits the batches that completed; the write
	// phase runs detached from the cancellation signal.
	writeCtx := ctx
	if ctx.Err() != nil {
		report.Cancelled = true
		writeCtx = context.WithoutCancel(ctx)
	}
	stats, writeErr := o.writer.Write(writeCtx, writePlan)
	report.EntitiesWritten = stats.EntitiesWritten
	report.RelationshipsWritten = stats.RelationshipsWritten
	report.EntitiesDeleted = int(stats.EntitiesDeleted)

	if writeErr != nil {
		report.PartiallyFailed = true
		var we *cgerr.WriteError
		if cgerr.AsWrite(writeErr, &we) {
			report.Failures = append(report.Failures, models.FileFailure{
				Path: we.Batch, Stage: "write", Err: writeErr.Error(),
			})
		} else {
			report.Failures = append(report.Failures, models.FileFailure{
				Stage: "write", Err: writeErr.Error(),
			})
		}
		// The entity phase failing means nothing from this generation is
		// trustworthy; keep the old baseline so the next run retries.
		if stats.EntitiesWritten == 0 {
			report.Duration = time.Since(start)
			return report, writeErr
		}
	}

	// New baseline: re-parsed files move to this generation, removed
	// files drop out.
	for _, pf := range plan.Parse {
		res, ok := parsedSet[pf.File.RelPath]
		if !ok {
			continue // parse failed, keep the old record
		}
		rec := FileRecord{
			Hash:       pf.Hash,
			Generation: generation,
			Language:   pf.File.Language,
			Size:       pf.File.Size,
		}
		if serr := o.state.PutFile(pf.File.RelPath, rec, res.Entities, res.Relationships); serr != nil {
			return report, serr
		}
	}
	if err := o.state.DeleteFiles(plan.Removed); err != nil {
		return report, err
	}
	if err := o.state.SetGeneration(generation); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	runLog.WithFields(logrus.Fields{
		"entities":      report.EntitiesWritten,
		"relationships": report.RelationshipsWritten,
		"deleted":       report.EntitiesDeleted,
		"unresolved":    report.UnresolvedReferences,
		"ambiguous":     report.ResolutionAmbiguities,
		"duration":      report.Duration.Round(time.Millisecond),
	}).Info("ingestion complete")
	return report, nil
}

// parseAll partitions the parse set into size-balanced batches and runs a
// worker pool per batch. Cancellation is honored between batches, never
// mid-batch, so a batch's results are always complete or absent.
func (o *Orchestrator) parseAll(ctx context.Context, planned []PlannedFile, opts Options, runLog *logrus.Entry) ([]*parser.ParseResult, bool) {
	files := make([]walker.FileInfo, len(planned))
	for i, pf := range planned {
		files[i] = pf.File
	}
	batches := walker.Partition(files, opts.MaxBatchBytes)

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	var all []*parser.ParseResult
	for i, batch := range batches {
		if ctx.Err() != nil {
			runLog.WithField("batches_done", i).Warn("cancelled between batches")
			return all, true
		}
		all = append(all, o.parseBatch(batch, workers)...)
	}
	return all, false
}

func (o *Orchestrator) parseBatch(batch []walker.FileInfo, workers int) []*parser.ParseResult {
	jobs := make(chan walker.FileInfo)
	var mu sync.Mutex
	var results []*parser.ParseResult

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				spec, ok := o.registry.Lookup(path.Ext(file.RelPath))
				if !ok {
					continue
				}
				res := parser.ParseFile(file, spec)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}
	for _, file := range batch {
		jobs <- file
	}
	close(jobs)
	wg.Wait()
	return results
}
