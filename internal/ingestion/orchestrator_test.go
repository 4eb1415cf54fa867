package ingestion

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/graph"
	"github.com/codegraph/codegraph-go/internal/models"
	"github.com/codegraph/codegraph-go/internal/parser"
)

// fakeGraph is an in-memory graph.Backend recording what the run wrote.
type fakeGraph struct {
	mu       sync.Mutex
	entities map[models.EntityID]bool
	relTypes map[models.RelType]int
	deleted  []string
	renamed  map[string]string
	wiped    bool
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		entities: map[models.EntityID]bool{},
		relTypes: map[models.RelType]int{},
		renamed:  map[string]string{},
	}
}

func (f *fakeGraph) EnsureConstraints(context.Context) error { return nil }

func (f *fakeGraph) UpsertEntities(_ context.Context, entities []*models.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entities {
		f.entities[e.ID] = true
	}
	return nil
}

func (f *fakeGraph) UpsertRelationships(_ context.Context, rels []models.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rels {
		f.relTypes[r.Type]++
	}
	return nil
}

func (f *fakeGraph) DeleteEntitiesForFiles(_ context.Context, files []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, files...)
	return int64(len(files)), nil
}

func (f *fakeGraph) PruneStaleEntities(context.Context, []string, uint64) (int64, error) {
	return 0, nil
}

func (f *fakeGraph) PruneEdgesForFiles(context.Context, []string) (int64, error) {
	return 0, nil
}

func (f *fakeGraph) RenameFile(_ context.Context, oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renamed[oldPath] = newPath
	return nil
}

func (f *fakeGraph) Wipe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wiped = true
	return nil
}

func (f *fakeGraph) Close(context.Context) error { return nil }

func (f *fakeGraph) hasEntity(kind models.EntityKind, qn string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entities[models.EntityID{Kind: kind, QualifiedName: qn}]
}

func (f *fakeGraph) relCount(typ models.RelType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.relTypes[typ]
}

func (f *fakeGraph) deletedFiles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// reset clears write records between runs so per-run assertions hold.
func (f *fakeGraph) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities = map[models.EntityID]bool{}
	f.relTypes = map[models.RelType]int{}
	f.deleted = nil
}

type stubEnricher struct {
	ents []models.CandidateEntity
	rels []models.CandidateRelationship
	err  error
	hook func()
}

func (s *stubEnricher) Name() string { return "stub" }

func (s *stubEnricher) Enrich(context.Context, string) ([]models.CandidateEntity, []models.CandidateRelationship, error) {
	if s.hook != nil {
		s.hook()
	}
	return s.ents, s.rels, s.err
}

// gitCandidates mirrors the shape the vcs enricher emits: entities defined
// outside the walked source tree.
func gitCandidates() ([]models.CandidateEntity, []models.CandidateRelationship) {
	ents := []models.CandidateEntity{
		{
			Kind: models.KindAuthor, Name: "Ada",
			QualifiedName: "author.ada@example.com",
			DefiningFile:  ".git", Module: "vcs",
			Attrs: map[string]any{"email": "ada@example.com"},
		},
		{
			Kind: models.KindCommit, Name: "1a2b3c4d",
			QualifiedName: "commit.1a2b3c4d",
			DefiningFile:  ".git", Module: "vcs",
		},
	}
	rels := []models.CandidateRelationship{{
		Type:        models.RelAuthoredBy,
		SourceQN:    "commit.1a2b3c4d",
		SourceKinds: []models.EntityKind{models.KindCommit},
		SourceFile:  ".git", SourceModule: "vcs",
		TargetName:  "author.ada@example.com",
		TargetKinds: []models.EntityKind{models.KindAuthor},
		Scope:       models.ScopeGlobal,
		Confidence:  1.0,
	}}
	return ents, rels
}

func newTestOrchestrator(t *testing.T, backend graph.Backend, enrichers ...Enricher) *Orchestrator {
	t.Helper()
	state, err := OpenState(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	writer := graph.NewWriter(backend, graph.BatchConfig{
		EntityBatchSize: 100,
		EdgeBatchSize:   100,
		MaxConcurrent:   1,
		MaxRetries:      1,
		RetryBaseDelay:  time.Millisecond,
		BatchTimeout:    time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return NewOrchestrator(parser.DefaultRegistry(), backend, writer, state, log, enrichers...)
}

func runOpts(root string) Options {
	return Options{Root: root, Workers: 2, MaxBatchBytes: 1 << 20}
}

const featureSource = "Feature: Checkout\n  Scenario: Pay\n    Given a cart\n"

func TestRunWritesEnrichmentAlongsideSources(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "checkout.feature", featureSource)

	ents, rels := gitCandidates()
	backend := newFakeGraph()
	orch := newTestOrchestrator(t, backend, &stubEnricher{ents: ents, rels: rels})

	report, err := orch.Run(context.Background(), runOpts(root))
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, 1, report.FilesParsed)

	assert.True(t, backend.hasEntity(models.KindBDDFeature, "checkout.Checkout"))
	assert.True(t, backend.hasEntity(models.KindAuthor, "author.ada@example.com"))
	assert.True(t, backend.hasEntity(models.KindCommit, "commit.1a2b3c4d"))
	assert.Equal(t, 1, backend.relCount(models.RelAuthoredBy))
}

func TestRunUnchangedTreeRewritesOnlyEnrichment(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "checkout.feature", featureSource)

	ents, rels := gitCandidates()
	backend := newFakeGraph()
	orch := newTestOrchestrator(t, backend, &stubEnricher{ents: ents, rels: rels})

	_, err := orch.Run(context.Background(), runOpts(root))
	require.NoError(t, err)

	backend.reset()
	report, err := orch.Run(context.Background(), runOpts(root))
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, uint64(2), report.Generation)
	assert.Equal(t, 1, report.FilesReused)
	assert.Zero(t, report.FilesParsed)

	// Source entities already sit in the graph; only the enrichment set
	// rewrites, and writes stay idempotent across runs.
	assert.False(t, backend.hasEntity(models.KindBDDFeature, "checkout.Checkout"))
	assert.True(t, backend.hasEntity(models.KindAuthor, "author.ada@example.com"))
	assert.Equal(t, 1, backend.relCount(models.RelAuthoredBy))
}

func TestRunRemovedFileDeletesItsEntities(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "checkout.feature", featureSource)
	writeFile(t, root, "refunds.feature", "Feature: Refunds\n  Scenario: Full\n    Given an order\n")

	backend := newFakeGraph()
	orch := newTestOrchestrator(t, backend)

	_, err := orch.Run(context.Background(), runOpts(root))
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "refunds.feature")))
	backend.reset()
	report, err := orch.Run(context.Background(), runOpts(root))
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, []string{"refunds.feature"}, backend.deletedFiles())
	assert.Equal(t, 1, report.FilesReused)
	assert.Equal(t, 1, report.EntitiesDeleted)
}

func TestRunCancelledBeforeWriteStillCommits(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "checkout.feature", featureSource)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ents, rels := gitCandidates()
	backend := newFakeGraph()
	orch := newTestOrchestrator(t, backend, &stubEnricher{ents: ents, rels: rels, hook: cancel})

	report, err := orch.Run(ctx, runOpts(root))
	require.NoError(t, err)
	assert.True(t, report.Cancelled)

	// Parse work finished before the cancel arrived, so its results commit
	// and the baseline advances; only unscheduled work is dropped.
	assert.True(t, backend.hasEntity(models.KindBDDFeature, "checkout.Checkout"))
	assert.True(t, backend.hasEntity(models.KindAuthor, "author.ada@example.com"))
	assert.Positive(t, report.RelationshipsWritten)
	assert.Equal(t, uint64(1), report.Generation)
}

func TestRunFailedEnricherDoesNotFailRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "checkout.feature", featureSource)

	backend := newFakeGraph()
	orch := newTestOrchestrator(t, backend, &stubEnricher{err: assert.AnError})

	report, err := orch.Run(context.Background(), runOpts(root))
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.True(t, backend.hasEntity(models.KindBDDFeature, "checkout.Checkout"))
}

func TestRunCleanWipesGraphAndState(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "checkout.feature", featureSource)

	backend := newFakeGraph()
	orch := newTestOrchestrator(t, backend)

	_, err := orch.Run(context.Background(), runOpts(root))
	require.NoError(t, err)

	opts := runOpts(root)
	opts.Clean = true
	report, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, backend.wiped)
	// A wiped baseline re-parses everything at generation one.
	assert.Equal(t, uint64(1), report.Generation)
	assert.Equal(t, 1, report.FilesParsed)
	assert.Zero(t, report.FilesReused)
}
