// Package graph materializes resolved entities and relationships into a
// property-graph store. All writes are idempotent: nodes merge on
// (label, qualified_name) and edges merge on (type, endpoints), so
// re-running a generation converges instead of duplicating.
package graph

import (
	"context"

	"github.com/codegraph/codegraph-go/internal/models"
)

// Backend is the storage contract the writer drives. One implementation
// talks to Neo4j; tests substitute an in-memory fake.
type Backend interface {
	// EnsureConstraints creates the per-label uniqueness constraints on
	// qualified_name. Safe to call repeatedly.
	EnsureConstraints(ctx context.Context) error

	// UpsertEntities merges one batch of nodes.
	UpsertEntities(ctx context.Context, entities []*models.Entity) error

	// UpsertRelationships merges one batch of edges. Both endpoints must
	// already exist; the writer guarantees ordering.
	UpsertRelationships(ctx context.Context, rels []models.Relationship) error

	// DeleteEntitiesForFiles detaches and deletes every node owned by the
	// given files. Used for removed files.
	DeleteEntitiesForFiles(ctx context.Context, files []string) (int64, error)

	// PruneStaleEntities deletes nodes owned by the given files whose
	// generation predates the current one. Used after re-parsing modified
	// files so entities that vanished from the source vanish from the graph.
	PruneStaleEntities(ctx context.Context, files []string, generation uint64) (int64, error)

	// PruneEdgesForFiles deletes every edge whose source node is owned by
	// one of the given files. Re-parsed files get their outgoing edges
	// rebuilt from scratch, so edges that vanished from the source vanish
	// from the graph.
	PruneEdgesForFiles(ctx context.Context, files []string) (int64, error)

	// RenameFile rewrites the defining_file property for a content-identical
	// rename, avoiding a re-parse.
	RenameFile(ctx context.Context, oldPath, newPath string) error

	// Wipe deletes the whole graph. Destructive; only the clean path calls it.
	Wipe(ctx context.Context) error

	Close(ctx context.Context) error
}
