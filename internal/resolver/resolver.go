// Package resolver merges per-file candidate entities into a single symbol
// table and resolves symbolic relationship endpoints against it. Resolution
// is single-threaded and order-independent: the same set of parse results
// always yields the same entities and edges regardless of worker schedule.
package resolver

import (
	"sort"

	"github.com/codegraph/codegraph-go/internal/models"
)

// SymbolTable indexes one generation's resolved entities for endpoint
// lookup at every scope the builder searches.
type SymbolTable struct {
	exact    map[string][]*models.Entity            // qualified name -> entities (kinds may collide)
	byFile   map[string]map[string][]*models.Entity // file -> simple name -> entities
	byModule map[string]map[string][]*models.Entity // module -> simple name -> entities
	bySimple map[string][]*models.Entity            // simple name -> entities
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{
		exact:    map[string][]*models.Entity{},
		byFile:   map[string]map[string][]*models.Entity{},
		byModule: map[string]map[string][]*models.Entity{},
		bySimple: map[string][]*models.Entity{},
	}
}

func (t *SymbolTable) add(e *models.Entity) {
	t.exact[e.ID.QualifiedName] = append(t.exact[e.ID.QualifiedName], e)
	t.bySimple[e.Name] = append(t.bySimple[e.Name], e)

	if t.byFile[e.DefiningFile] == nil {
		t.byFile[e.DefiningFile] = map[string][]*models.Entity{}
	}
	t.byFile[e.DefiningFile][e.Name] = append(t.byFile[e.DefiningFile][e.Name], e)

	if t.byModule[e.Module] == nil {
		t.byModule[e.Module] = map[string][]*models.Entity{}
	}
	t.byModule[e.Module][e.Name] = append(t.byModule[e.Module][e.Name], e)
}

// Exact returns entities with the given qualified name, optionally filtered
// by acceptable kinds.
func (t *SymbolTable) Exact(qn string, kinds []models.EntityKind) []*models.Entity {
	return filterKinds(t.exact[qn], kinds)
}

// InFile returns entities named name defined in file.
func (t *SymbolTable) InFile(file, name string, kinds []models.EntityKind) []*models.Entity {
	if m := t.byFile[file]; m != nil {
		return filterKinds(m[name], kinds)
	}
	return nil
}

// InModule returns entities named name defined in module.
func (t *SymbolTable) InModule(module, name string, kinds []models.EntityKind) []*models.Entity {
	if m := t.byModule[module]; m != nil {
		return filterKinds(m[name], kinds)
	}
	return nil
}

// Global returns all entities with the given simple name.
func (t *SymbolTable) Global(name string, kinds []models.EntityKind) []*models.Entity {
	return filterKinds(t.bySimple[name], kinds)
}

// Len returns the number of distinct qualified names in the table.
func (t *SymbolTable) Len() int { return len(t.exact) }

func filterKinds(entities []*models.Entity, kinds []models.EntityKind) []*models.Entity {
	if len(kinds) == 0 || len(entities) == 0 {
		return entities
	}
	var out []*models.Entity
	for _, e := range entities {
		for _, k := range kinds {
			if e.ID.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Resolve merges candidates from every parsed file into final entities and
// the symbol table. Duplicate (kind, qualified name) pairs collapse to one
// entity; the copy from the lexicographically smallest defining file wins,
// which keeps the merge independent of parse order. A qualified name
// claimed by more than one kind is kept under both identities but reported
// as a conflict.
func Resolve(candidates []models.CandidateEntity, generation uint64) ([]*models.Entity, *SymbolTable, models.ResolverReport) {
	report := models.ResolverReport{}

	sorted := make([]models.CandidateEntity, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.QualifiedName != b.QualifiedName {
			return a.QualifiedName < b.QualifiedName
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.DefiningFile < b.DefiningFile
	})

	table := newSymbolTable()
	var entities []*models.Entity
	seen := map[models.EntityID]bool{}
	kindsByQN := map[string][]models.EntityKind{}

	for _, c := range sorted {
		id := models.EntityID{Kind: c.Kind, QualifiedName: c.QualifiedName}
		if seen[id] {
			report.UpdatedEntities++
			continue
		}
		seen[id] = true
		kindsByQN[c.QualifiedName] = append(kindsByQN[c.QualifiedName], c.Kind)

		e := &models.Entity{
			ID:           id,
			Name:         c.Name,
			DefiningFile: c.DefiningFile,
			Module:       c.Module,
			StartLine:    c.StartLine,
			EndLine:      c.EndLine,
			Generation:   generation,
			Attrs:        c.Attrs,
		}
		entities = append(entities, e)
		table.add(e)
		report.NewEntities++
	}

	for qn, kinds := range kindsByQN {
		if len(kinds) > 1 {
			report.KindConflicts = append(report.KindConflicts, qn)
		}
	}
	sort.Strings(report.KindConflicts)

	return entities, table, report
}
