package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	cgerr "github.com/codegraph/codegraph-go/internal/errors"
	"github.com/codegraph/codegraph-go/internal/models"
)

// WritePlan is one generation's worth of graph mutations.
type WritePlan struct {
	Generation uint64

	// DeleteFiles lose all their entities (removed from the tree).
	DeleteFiles []string
	// Renames map old path -> new path for content-identical moves.
	Renames map[string]string
	// PruneFiles were re-parsed; their stale-generation entities are
	// deleted after the new entities land.
	PruneFiles []string

	Entities      []*models.Entity
	Relationships []models.Relationship
}

// WriteStats reports what one Write actually changed.
type WriteStats struct {
	EntitiesWritten      int
	RelationshipsWritten int
	EntitiesDeleted      int64
	FailedEdgeBatches    int
}

// Writer pushes a plan at the backend in phases with a hard barrier:
// deletions and renames first, then every entity batch, then stale pruning,
// then relationships. Relationships are never written unless every entity
// batch succeeded, so an edge can never reference a node that failed to
// land. Entity-phase failure aborts the generation; edge-phase failures
// degrade to a partial result.
type Writer struct {
	backend Backend
	cfg     BatchConfig
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewWriter(backend Backend, cfg BatchConfig, log *slog.Logger) *Writer {
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{backend: backend, cfg: cfg, limiter: limiter, log: log}
}

// Write applies the plan. The returned stats are valid even on error; the
// error is non-nil if the entity phase failed or any edge batch was lost.
func (w *Writer) Write(ctx context.Context, plan WritePlan) (WriteStats, error) {
	stats := WriteStats{}

	for oldPath, newPath := range plan.Renames {
		if err := w.retryBatch(ctx, "rename "+oldPath, func(bctx context.Context) error {
			return w.backend.RenameFile(bctx, oldPath, newPath)
		}); err != nil {
			return stats, err
		}
	}

	if len(plan.DeleteFiles) > 0 {
		var deleted int64
		if err := w.retryBatch(ctx, "delete removed files", func(bctx context.Context) error {
			var derr error
			deleted, derr = w.backend.DeleteEntitiesForFiles(bctx, plan.DeleteFiles)
			return derr
		}); err != nil {
			return stats, err
		}
		stats.EntitiesDeleted += deleted
	}

	// Entity phase. All batches must succeed before any edge is written.
	if err := w.writeEntities(ctx, plan.Entities); err != nil {
		return stats, err
	}
	stats.EntitiesWritten = len(plan.Entities)

	if len(plan.PruneFiles) > 0 {
		var pruned int64
		if err := w.retryBatch(ctx, "prune stale entities", func(bctx context.Context) error {
			var perr error
			pruned, perr = w.backend.PruneStaleEntities(bctx, plan.PruneFiles, plan.Generation)
			return perr
		}); err != nil {
			return stats, err
		}
		stats.EntitiesDeleted += pruned

		if err := w.retryBatch(ctx, "prune stale edges", func(bctx context.Context) error {
			_, perr := w.backend.PruneEdgesForFiles(bctx, plan.PruneFiles)
			return perr
		}); err != nil {
			return stats, err
		}
	}

	// Edge phase. A lost batch is reported, not fatal.
	written, failed := w.writeRelationships(ctx, plan.Relationships)
	stats.RelationshipsWritten = written
	stats.FailedEdgeBatches = failed
	if failed > 0 {
		return stats, fmt.Errorf("%d relationship batches failed", failed)
	}
	return stats, nil
}

func (w *Writer) writeEntities(ctx context.Context, entities []*models.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxConcurrent)

	size := w.cfg.EntityBatchSize
	if size <= 0 {
		size = 500
	}
	for start := 0; start < len(entities); start += size {
		end := start + size
		if end > len(entities) {
			end = len(entities)
		}
		batch := entities[start:end]
		label := fmt.Sprintf("entities[%d:%d]", start, end)
		g.Go(func() error {
			return w.retryBatch(gctx, label, func(bctx context.Context) error {
				return w.backend.UpsertEntities(bctx, batch)
			})
		})
	}
	return g.Wait()
}

func (w *Writer) writeRelationships(ctx context.Context, rels []models.Relationship) (written int, failed int) {
	if len(rels) == 0 {
		return 0, 0
	}
	size := w.cfg.EdgeBatchSize
	if size <= 0 {
		size = 1000
	}

	type outcome struct {
		count int
		err   error
	}
	var outcomes []chan outcome

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxConcurrent)

	for start := 0; start < len(rels); start += size {
		end := start + size
		if end > len(rels) {
			end = len(rels)
		}
		batch := rels[start:end]
		label := fmt.Sprintf("relationships[%d:%d]", start, end)
		ch := make(chan outcome, 1)
		outcomes = append(outcomes, ch)
		g.Go(func() error {
			err := w.retryBatch(gctx, label, func(bctx context.Context) error {
				return w.backend.UpsertRelationships(bctx, batch)
			})
			ch <- outcome{count: len(batch), err: err}
			if err != nil {
				w.log.Error("relationship batch lost", "batch", label, "error", err)
			}
			// Edge batches are independent; one failure does not
			// cancel the rest.
			return nil
		})
	}
	_ = g.Wait()

	for _, ch := range outcomes {
		o := <-ch
		if o.err != nil {
			failed++
		} else {
			written += o.count
		}
	}
	return written, failed
}

// retryBatch runs one batch with the per-batch timeout, the shared rate
// limit, and exponential backoff. Context cancellation is never retried.
func (w *Writer) retryBatch(ctx context.Context, label string, fn func(context.Context) error) error {
	attempts := w.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return cgerr.NewWrite(label, attempt, false, err)
			}
		}

		bctx := ctx
		var cancel context.CancelFunc
		if w.cfg.BatchTimeout > 0 {
			bctx, cancel = context.WithTimeout(ctx, w.cfg.BatchTimeout)
		}
		lastErr = fn(bctx)
		if cancel != nil {
			cancel()
		}
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return cgerr.NewWrite(label, attempt, false, ctx.Err())
		}

		if attempt < attempts {
			delay := w.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
			w.log.Warn("batch failed, retrying",
				"batch", label, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return cgerr.NewWrite(label, attempt, false, ctx.Err())
			}
		}
	}
	return cgerr.NewWrite(label, attempts, true, lastErr)
}
