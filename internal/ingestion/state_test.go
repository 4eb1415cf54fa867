package ingestion

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/models"
)

func openTestState(t *testing.T) *StateStore {
	t.Helper()
	s, err := OpenState(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStateGeneration(t *testing.T) {
	s := openTestState(t)

	gen, err := s.Generation()
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, s.SetGeneration(7))
	gen, err = s.Generation()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), gen)
}

func TestStateFileRoundTrip(t *testing.T) {
	s := openTestState(t)

	rec := FileRecord{Hash: 42, Generation: 3, Language: "c", Size: 128}
	entities := []models.CandidateEntity{{
		Kind:          models.KindFunction,
		Name:          "probe",
		QualifiedName: "drv.core.probe",
		DefiningFile:  "drv/core.c",
		Module:        "drv.core",
	}}
	rels := []models.CandidateRelationship{{
		Type:       models.RelCalls,
		SourceQN:   "drv.core.probe",
		TargetName: "init_hw",
		Scope:      models.ScopeLocal,
		Confidence: 1.0,
	}}
	require.NoError(t, s.PutFile("drv/core.c", rec, entities, rels))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, rec, snap["drv/core.c"])

	gotEnts, gotRels, err := s.Candidates("drv/core.c")
	require.NoError(t, err)
	require.Len(t, gotEnts, 1)
	assert.Equal(t, "drv.core.probe", gotEnts[0].QualifiedName)
	require.Len(t, gotRels, 1)
	assert.Equal(t, "init_hw", gotRels[0].TargetName)
}

func TestStateCandidatesMissing(t *testing.T) {
	s := openTestState(t)
	_, _, err := s.Candidates("never/indexed.c")
	require.Error(t, err)
}

func TestStateDeleteFiles(t *testing.T) {
	s := openTestState(t)
	require.NoError(t, s.PutFile("a.c", FileRecord{Hash: 1}, nil, nil))
	require.NoError(t, s.PutFile("b.c", FileRecord{Hash: 2}, nil, nil))

	require.NoError(t, s.DeleteFiles([]string{"a.c"}))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotContains(t, snap, "a.c")
	assert.Contains(t, snap, "b.c")

	_, _, err = s.Candidates("a.c")
	require.Error(t, err)
}

func TestStateRename(t *testing.T) {
	s := openTestState(t)
	entities := []models.CandidateEntity{{
		Kind: models.KindFunction, Name: "f", QualifiedName: "old.f",
	}}
	require.NoError(t, s.PutFile("old.c", FileRecord{Hash: 9, Generation: 2}, entities, nil))

	require.NoError(t, s.Rename("old.c", "new.c"))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotContains(t, snap, "old.c")
	assert.Equal(t, uint64(9), snap["new.c"].Hash)

	gotEnts, _, err := s.Candidates("new.c")
	require.NoError(t, err)
	require.Len(t, gotEnts, 1)
	assert.Equal(t, "old.f", gotEnts[0].QualifiedName)
}

func TestStateReset(t *testing.T) {
	s := openTestState(t)
	require.NoError(t, s.PutFile("a.c", FileRecord{Hash: 1}, nil, nil))
	require.NoError(t, s.SetGeneration(4))

	require.NoError(t, s.Reset())

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap)

	gen, err := s.Generation()
	require.NoError(t, err)
	assert.Zero(t, gen)
}
