package resolver

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/models"
)

func cand(kind models.EntityKind, name, qn, file, module string) models.CandidateEntity {
	return models.CandidateEntity{
		Kind:          kind,
		Name:          name,
		QualifiedName: qn,
		DefiningFile:  file,
		Module:        module,
		StartLine:     1,
	}
}

func TestResolveMergesDuplicates(t *testing.T) {
	candidates := []models.CandidateEntity{
		cand(models.KindFunction, "encode", "net.codec.encode", "net/codec.c", "net.codec"),
		cand(models.KindFunction, "encode", "net.codec.encode", "net/codec.c", "net.codec"),
	}

	entities, table, report := Resolve(candidates, 1)
	require.Len(t, entities, 1)
	assert.Equal(t, 1, report.NewEntities)
	assert.Equal(t, 1, report.UpdatedEntities)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, uint64(1), entities[0].Generation)
}

func TestResolveOrderIndependent(t *testing.T) {
	// The same declaration seen from two files collapses to the copy from
	// the lexicographically smaller file no matter the input order.
	candidates := []models.CandidateEntity{
		cand(models.KindMacro, "MAX_LEN", "include.limits.MAX_LEN", "zz/limits.h", "include.limits"),
		cand(models.KindMacro, "MAX_LEN", "include.limits.MAX_LEN", "aa/limits.h", "include.limits"),
		cand(models.KindFunction, "probe", "drv.core.probe", "drv/core.c", "drv.core"),
	}

	var winner string
	for i := 0; i < 10; i++ {
		shuffled := make([]models.CandidateEntity, len(candidates))
		copy(shuffled, candidates)
		rand.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		entities, _, _ := Resolve(shuffled, 1)
		require.Len(t, entities, 2)
		for _, e := range entities {
			if e.Name == "MAX_LEN" {
				if winner == "" {
					winner = e.DefiningFile
				}
				assert.Equal(t, winner, e.DefiningFile)
			}
		}
	}
	assert.Equal(t, "aa/limits.h", winner)
}

func TestResolveKindConflicts(t *testing.T) {
	candidates := []models.CandidateEntity{
		cand(models.KindFunction, "status", "app.state.status", "app/state.py", "app.state"),
		cand(models.KindVariable, "status", "app.state.status", "app/state.py", "app.state"),
	}

	entities, table, report := Resolve(candidates, 3)
	// Both identities survive under distinct (kind, qn) pairs.
	require.Len(t, entities, 2)
	require.Len(t, report.KindConflicts, 1)
	assert.Equal(t, "app.state.status", report.KindConflicts[0])
	assert.Len(t, table.Exact("app.state.status", nil), 2)
	assert.Len(t, table.Exact("app.state.status", []models.EntityKind{models.KindVariable}), 1)
}

func TestSymbolTableScopes(t *testing.T) {
	candidates := []models.CandidateEntity{
		cand(models.KindFunction, "init", "net.sock.init", "net/sock.c", "net.sock"),
		cand(models.KindFunction, "init", "mm.page.init", "mm/page.c", "mm.page"),
	}
	_, table, _ := Resolve(candidates, 1)

	assert.Len(t, table.InFile("net/sock.c", "init", nil), 1)
	assert.Len(t, table.InModule("mm.page", "init", nil), 1)
	assert.Len(t, table.Global("init", nil), 2)
	assert.Empty(t, table.InFile("net/sock.c", "missing", nil))
	assert.Empty(t, table.InFile("other/file.c", "init", nil))
}
