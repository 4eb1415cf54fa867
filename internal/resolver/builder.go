package resolver

import (
	"sort"
	"strings"

	"github.com/codegraph/codegraph-go/internal/models"
)

// BuildStats counts candidate relationships that could not be materialized.
// Dropped edges are never guessed at: an unresolvable or ambiguous endpoint
// drops the edge and increments the matching counter.
type BuildStats struct {
	Unresolved int
	Ambiguous  int
}

// Build resolves candidate relationships against the symbol table and
// deduplicates them. Duplicate edges (same type and endpoint pair) collapse
// to one relationship carrying the highest confidence seen. Output order is
// deterministic.
func Build(candidates []models.CandidateRelationship, table *SymbolTable) ([]models.Relationship, BuildStats) {
	stats := BuildStats{}
	dedup := map[models.EdgeKey]*models.Relationship{}

	for _, c := range candidates {
		from, ok := resolveEndpoint(table, c.SourceQN, c.SourceName, c.SourceKinds, c.SourceFile, c.SourceModule, c.Scope, &stats)
		if !ok {
			continue
		}
		to, ok := resolveEndpoint(table, "", c.TargetName, c.TargetKinds, c.SourceFile, c.SourceModule, c.Scope, &stats)
		if !ok {
			continue
		}

		rel := models.Relationship{
			Type:       c.Type,
			From:       from.ID,
			To:         to.ID,
			Confidence: c.Confidence,
			Attrs:      c.Attrs,
		}
		key := rel.Key()
		if prev, exists := dedup[key]; exists {
			// Attrs merge key by key into a fresh map so candidate maps
			// stay untouched; on a key collision the higher-confidence
			// candidate's value wins.
			wins := rel.Confidence > prev.Confidence
			if wins {
				prev.Confidence = rel.Confidence
			}
			if len(rel.Attrs) > 0 {
				merged := make(map[string]any, len(prev.Attrs)+len(rel.Attrs))
				for k, v := range prev.Attrs {
					merged[k] = v
				}
				for k, v := range rel.Attrs {
					if _, present := merged[k]; !present || wins {
						merged[k] = v
					}
				}
				prev.Attrs = merged
			}
			continue
		}
		dedup[key] = &rel
	}

	out := make([]models.Relationship, 0, len(dedup))
	for _, rel := range dedup {
		out = append(out, *rel)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.From.QualifiedName != b.From.QualifiedName {
			return a.From.QualifiedName < b.From.QualifiedName
		}
		return a.To.QualifiedName < b.To.QualifiedName
	})
	return out, stats
}

// resolveEndpoint finds the single entity an endpoint refers to.
//
// A qualified name is authoritative: it either matches exactly or the edge
// drops. A symbolic name searches outward from the scope hint: same file,
// then same module, then global simple-name match. More than one match at
// the deciding scope is an ambiguity, not a license to pick one.
func resolveEndpoint(table *SymbolTable, qn, name string, kinds []models.EntityKind, file, module string, scope models.ScopeHint, stats *BuildStats) (*models.Entity, bool) {
	if qn != "" {
		return pick(table.Exact(qn, kinds), stats)
	}
	if name == "" {
		stats.Unresolved++
		return nil, false
	}

	// A dotted name is a fully qualified reference (import rewrite,
	// containment target). It matches exactly or not at all.
	if strings.Contains(name, ".") {
		if matches := table.Exact(name, kinds); len(matches) > 0 {
			return pick(matches, stats)
		}
		stats.Unresolved++
		return nil, false
	}

	type step func() []*models.Entity
	steps := []step{
		func() []*models.Entity { return table.InFile(file, name, kinds) },
		func() []*models.Entity { return table.InModule(module, name, kinds) },
		func() []*models.Entity { return table.Global(name, kinds) },
	}
	start := 0
	switch scope {
	case models.ScopeModule:
		start = 1
	case models.ScopeGlobal:
		start = 2
	}

	for _, s := range steps[start:] {
		matches := s()
		if len(matches) == 0 {
			continue
		}
		return pick(matches, stats)
	}
	stats.Unresolved++
	return nil, false
}

func pick(matches []*models.Entity, stats *BuildStats) (*models.Entity, bool) {
	switch len(matches) {
	case 1:
		return matches[0], true
	case 0:
		stats.Unresolved++
		return nil, false
	default:
		stats.Ambiguous++
		return nil, false
	}
}
